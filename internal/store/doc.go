// Package store persists vector-index records, knowledge bases and their
// document memberships in Postgres.
//
// The index pool's linearization point lives here: reservation of an
// AVAILABLE index is a single UPDATE over a FOR UPDATE SKIP LOCKED
// sub-select, so concurrent creators never serialize on, or double-assign,
// the same row. All other transactions are short; SQL results are mapped
// onto the internal/fault taxonomy at this boundary.
package store
