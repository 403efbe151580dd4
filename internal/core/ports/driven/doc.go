// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding backends, the vector index,
// the metadata log and the visit ledger.
package driven
