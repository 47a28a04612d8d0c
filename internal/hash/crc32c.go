package hash

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// Records checksums a node region record by record, which gives the same
// result as CRC32C over the whole region. It lets callers verify a mapping
// without faulting in more than one record at a time.
func Records(data []byte, stride int) uint32 {
	if stride <= 0 {
		return CRC32C(data)
	}
	var crc uint32
	for off := 0; off < len(data); off += stride {
		crc = crc32.Update(crc, table, data[off:min(off+stride, len(data))])
	}
	return crc
}
