// Package snapshot persists the resting orders of a book together with
// the journal sequence they reflect. Restoring a snapshot and replaying
// only the journal records after its sequence rebuilds the book.
package snapshot
