// Package services contains the application core: the memory engine
// that drives ingestion and retrieval, the hybrid scorer, and the
// settings service. Services depend only on domain types and ports.
package services
