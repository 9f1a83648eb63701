// Package bulk executes set-based updates and deletes and keeps entity
// caches honest about them.
//
// A bulk mutation runs as one statement against the execution target. It
// never loads, changes, and saves individual rows, so any cache holding
// entity instances can no longer be trusted for rows the mutation matched.
// The Coordinator makes that divergence visible: after the target reports
// success it delivers a Signal to the Invalidator, and only then returns
// the affected row count.
//
// # Per-call state machine
//
//	Prepared -> Submitted -> Completed
//	                      -> Failed
//
// Validation happens before Prepared; an invalid mutation never reaches
// the target. A Failed call emits no Signal and reports no count.
//
// # Stale reads
//
// Callers holding entity instances across a bulk mutation must treat them
// as possibly stale unless they observed the Signal themselves. Caches
// registered as the Invalidator (see package session) observe it before
// Update or Delete return.
package bulk
