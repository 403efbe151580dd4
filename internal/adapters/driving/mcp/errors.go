// Package mcp provides an MCP (Model Context Protocol) server adapter for
// recall. It lets AI assistants index visited pages and query the
// persistent memory store.
package mcp

import "errors"

// ErrMissingMemoryService is returned when the memory service is not provided.
var ErrMissingMemoryService = errors.New("mcp: memory service is required")
