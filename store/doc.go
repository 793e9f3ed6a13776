// Package store implements the in-memory cache store of the query cache
// layer: a key to entry map with stale-while-revalidate reads, per-key fetch
// de-duplication, subscriber reference counting, background polling, and
// garbage collection of unsubscribed entries.
//
// The store never blocks a reader on the data source. Get returns the last
// known value immediately; revalidation happens in the background and
// subscribers are notified as entries change. Fetch failures keep the last
// good value visible alongside StatusError so consumers fail soft.
package store
