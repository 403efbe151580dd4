package driven

// ConfigStore provides persistent key-value configuration storage.
// Keys use dot notation, e.g. "embedding.provider".
type ConfigStore interface {
	// Get retrieves a raw value by key; the bool reports presence.
	Get(key string) (any, bool)

	// GetString retrieves a string value, or "" if absent.
	GetString(key string) string

	// GetInt retrieves an integer value, or 0 if absent.
	GetInt(key string) int

	// GetFloat retrieves a float value, or 0 if absent.
	GetFloat(key string) float64

	// GetBool retrieves a boolean value, or false if absent.
	GetBool(key string) bool

	// Set stores a value and persists it.
	Set(key string, value any) error

	// Path returns the location of the backing file.
	Path() string
}
