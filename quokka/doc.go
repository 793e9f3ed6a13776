// Package quokka is the QuokkaQ mock backend: a deterministic, seeded data
// source for the academic Q&A platform's courses, threads, posts, AI
// answers, notifications, and dashboard aggregates.
//
// The same seed always generates the same dataset, with engagement numbers
// (views, endorsements) derived from the platform's quality/age model, so
// demos and tests see stable data. Derived aggregates are memoized
// internally; that cache is private to the source and purged on writes.
//
// The package also owns the domain's canonical query keys and the
// invalidation-set helpers mutations use to stay narrowly scoped.
package quokka
