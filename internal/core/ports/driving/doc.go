// Package driving provides interfaces for primary/inbound adapters
// (CLI, TUI, MCP) onto the memory engine.
package driving
