// Package sector holds the mutable state of a search run and the decision
// rule applied to every queried sector.
//
// A State owns the FIFO work queue, the append-only list of processed
// sectors, the accumulated places and two monotonic counters: the next
// sector number to issue and the API credits consumed. Only the batch
// reconciliation step writes to it; the lock exists so that a control surface
// can read counts while a run is in progress.
package sector
