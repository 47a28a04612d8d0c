// Package hash provides the CRC32-Castagnoli checksum stored in index headers.
//
// Go's hash/crc32 uses SSE4.2 or the ARM CRC extension when available, so
// verifying a multi-gigabyte node region stays cheap relative to reading it.
package hash
