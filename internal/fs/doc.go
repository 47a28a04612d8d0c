// Package fs abstracts the file operations used to persist indexes.
//
// Production code uses [Default] ([LocalFS]). Tests swap in [FaultyFS] to
// inject write, sync and close failures and check that a failed save never
// leaves a partial file at the destination path.
//
// [WriteAtomic] writes to a sibling temporary file, syncs it and renames it
// over the destination.
package fs
