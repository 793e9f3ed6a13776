// Package querycache defines the shared contracts of the query cache layer:
// canonical query keys, freshness policies, entry snapshots, and the fetcher
// shape the data source collaborator implements.
//
// # Overview
//
// The layer has three components, built leaves first:
//
//   - querycache (this package): the query key registry and contracts
//   - store: the in-memory cache store with stale-while-revalidate reads
//   - mutation: the coordinator for optimistic writes with rollback
//
// # Query Keys
//
// Key builds a canonical identifier from an entity name plus scope
// parameters:
//
//	k := querycache.Key("instructorDashboard", userID)
//
// Construction is deterministic: repeated calls with the same inputs produce
// equal keys, trailing absent (nil) parameters are dropped, and free-text
// string parameters are normalized so "Binary Search" and "binary search"
// share one cache slot.
//
// # Prefix Matching
//
// PrefixMatch supports broad invalidation over a key namespace:
//
//	pred := querycache.PrefixMatch(querycache.Key("courseMetrics"))
//
// Treat it as an escape hatch. Mutations should compute exact key sets from
// their result payloads; blanket prefix invalidation refetches data for
// scopes a mutation never touched and was the documented performance defect
// this layer is designed to prevent.
//
// # Policies
//
// Policy carries the per-entry stale time (freshness window), GC time
// (retention after the last unsubscribe), and optional poll interval. A
// GCTime shorter than StaleTime is rejected by Validate rather than clamped.
package querycache
