// Package compress wraps an index file in a block-compressed envelope for
// export and object storage.
//
//	"ANNZ" | codec u8 | 3 reserved bytes | block*
//	block: uncompressed u32 | compressed u32 | payload
//
// A compressed size of 0 marks a block stored raw because compression
// did not pay off.
package compress

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compression algorithm.
type Codec uint8

const (
	None Codec = 0
	LZ4  Codec = 1
	ZSTD Codec = 2
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

const (
	// Magic starts every envelope.
	Magic = "ANNZ"

	prefixSize       = 8
	blockHeaderSize  = 8
	DefaultBlockSize = 1 << 20
	maxBlockSize     = 64 << 20
)

var (
	// ErrCorrupt is returned for malformed envelopes.
	ErrCorrupt = errors.New("compress: corrupt envelope")

	errWriterClosed = errors.New("compress: writer closed")
)

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getEncoder() *zstd.Encoder {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getDecoder() *zstd.Decoder {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

// IsEnvelope reports whether data starts with an envelope prefix.
func IsEnvelope(data []byte) bool {
	return len(data) >= prefixSize && string(data[:4]) == Magic
}

// Writer compresses everything written to it into an envelope.
// Close flushes the final block; it does not close the underlying writer.
type Writer struct {
	w         io.Writer
	codec     Codec
	blockSize int
	buf       []byte
	scratch   []byte
	started   bool
	closed    bool
	err       error
}

// NewWriter returns a Writer using codec and blocks of blockSize bytes
// (DefaultBlockSize when <= 0).
func NewWriter(w io.Writer, codec Codec, blockSize int) (*Writer, error) {
	if codec > ZSTD {
		return nil, fmt.Errorf("compress: unknown codec %d", codec)
	}
	if blockSize <= 0 || blockSize > maxBlockSize {
		blockSize = DefaultBlockSize
	}
	return &Writer{w: w, codec: codec, blockSize: blockSize, buf: make([]byte, 0, blockSize)}, nil
}

func (cw *Writer) writePrefix() error {
	if cw.started {
		return nil
	}
	cw.started = true
	var p [prefixSize]byte
	copy(p[:], Magic)
	p[4] = byte(cw.codec)
	_, err := cw.w.Write(p[:])
	return err
}

// Write implements io.Writer.
func (cw *Writer) Write(p []byte) (int, error) {
	if cw.closed {
		return 0, errWriterClosed
	}
	if cw.err != nil {
		return 0, cw.err
	}
	total := 0
	for len(p) > 0 {
		n := min(cw.blockSize-len(cw.buf), len(p))
		cw.buf = append(cw.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(cw.buf) == cw.blockSize {
			if err := cw.flush(); err != nil {
				cw.err = err
				return total, err
			}
		}
	}
	return total, nil
}

func (cw *Writer) flush() error {
	if err := cw.writePrefix(); err != nil {
		return err
	}
	if len(cw.buf) == 0 {
		return nil
	}

	payload := cw.buf
	compressed, err := cw.compress(cw.buf)
	if err != nil {
		return err
	}
	raw := len(compressed) == 0 || len(compressed) > len(cw.buf)*9/10
	if !raw {
		payload = compressed
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(cw.buf)))
	if !raw {
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	}
	if _, err := cw.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := cw.w.Write(payload); err != nil {
		return err
	}
	cw.buf = cw.buf[:0]
	return nil
}

func (cw *Writer) compress(data []byte) ([]byte, error) {
	switch cw.codec {
	case LZ4:
		bound := lz4.CompressBlockBound(len(data))
		if cap(cw.scratch) < bound {
			cw.scratch = make([]byte, bound)
		}
		n, err := lz4.CompressBlock(data, cw.scratch[:bound], nil)
		if err != nil {
			return nil, err
		}
		return cw.scratch[:n], nil
	case ZSTD:
		enc := getEncoder()
		defer zstdEncoders.Put(enc)
		cw.scratch = enc.EncodeAll(data, cw.scratch[:0])
		return cw.scratch, nil
	default:
		return nil, nil
	}
}

// Close writes any buffered data.
func (cw *Writer) Close() error {
	if cw.closed {
		return nil
	}
	cw.closed = true
	if cw.err == nil {
		cw.err = cw.flush()
	}
	return cw.err
}

// Encode compresses data into a new envelope.
func Encode(data []byte, codec Codec) ([]byte, error) {
	var out bytes.Buffer
	w, err := NewWriter(&out, codec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode expands an envelope.
func Decode(data []byte) ([]byte, error) {
	if !IsEnvelope(data) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrCorrupt, Magic)
	}
	codec := Codec(data[4])
	if codec > ZSTD {
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupt, codec)
	}

	var out []byte
	for off := prefixSize; off < len(data); {
		if off+blockHeaderSize > len(data) {
			return nil, fmt.Errorf("%w: truncated block header at %d", ErrCorrupt, off)
		}
		usize := int(binary.LittleEndian.Uint32(data[off:]))
		csize := int(binary.LittleEndian.Uint32(data[off+4:]))
		off += blockHeaderSize
		if usize > maxBlockSize {
			return nil, fmt.Errorf("%w: block of %d bytes", ErrCorrupt, usize)
		}

		if csize == 0 {
			if off+usize > len(data) {
				return nil, fmt.Errorf("%w: truncated raw block at %d", ErrCorrupt, off)
			}
			out = append(out, data[off:off+usize]...)
			off += usize
			continue
		}

		if off+csize > len(data) {
			return nil, fmt.Errorf("%w: truncated block at %d", ErrCorrupt, off)
		}
		block, err := decodeBlock(codec, data[off:off+csize], usize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		out = append(out, block...)
		off += csize
	}
	return out, nil
}

func decodeBlock(codec Codec, src []byte, usize int) ([]byte, error) {
	switch codec {
	case LZ4:
		dst := make([]byte, usize)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, err
		}
		if n != usize {
			return nil, errors.New("decompressed size mismatch")
		}
		return dst, nil
	case ZSTD:
		dec := getDecoder()
		defer zstdDecoders.Put(dec)
		dst, err := dec.DecodeAll(src, make([]byte, 0, usize))
		if err != nil {
			return nil, err
		}
		if len(dst) != usize {
			return nil, errors.New("decompressed size mismatch")
		}
		return dst, nil
	default:
		return nil, errors.New("compressed block in uncompressed envelope")
	}
}
