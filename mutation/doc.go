// Package mutation coordinates writes against the data source with
// optimistic cache updates and guaranteed consistency recovery.
//
// # Lifecycle
//
// Every mutation moves through the same phases:
//
//  1. Snapshot: each optimistic target's current value is recorded and the
//     optimistic update applied, so the UI reflects the write immediately.
//  2. Execute: the data source performs the write.
//  3. Commit (on success): the invalidation set computed from the result
//     payload is applied to the store, scheduling refetches for exactly the
//     affected entries. The snapshot is discarded.
//  4. Rollback (on failure): every snapshot value is restored together, and
//     the failure propagates to the caller wrapped in *Error.
//
// # Narrow invalidation
//
// Spec.Invalidation is a pure function of the mutation's result payload. A
// write scoped to one course must invalidate that course's entries and the
// dashboards of the instructors teaching it, never every instructor's
// dashboard system-wide. The result payload therefore has to carry the
// identifying scope data (course id, affected instructor ids); blanket
// prefix invalidation exists as InvalidationSet.Prefixes but is the
// exception, not the pattern.
package mutation
