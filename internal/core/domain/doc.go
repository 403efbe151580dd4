// Package domain contains the core types of the page-memory engine:
// chunks, index entries, visit records, search results and the
// session-scoped short-term memory buffer.
package domain
