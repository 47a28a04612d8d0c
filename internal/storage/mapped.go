package storage

import "io"

// Mapped is a read-only arena over an existing buffer.
type Mapped struct {
	stride int
	data   []byte
	closer io.Closer
}

// NewMapped wraps data. closer, if non-nil, is closed with the arena
// and owns the memory behind data.
func NewMapped(data []byte, stride int, closer io.Closer) (*Mapped, error) {
	if stride <= 0 || len(data)%stride != 0 {
		return nil, ErrMisaligned
	}
	return &Mapped{stride: stride, data: data, closer: closer}, nil
}

func (m *Mapped) Bytes() []byte { return m.data }
func (m *Mapped) Len() int      { return len(m.data) / m.stride }
func (m *Mapped) Stride() int   { return m.stride }

// Close releases the owner of the buffer.
func (m *Mapped) Close() error {
	m.data = nil
	if m.closer == nil {
		return nil
	}
	c := m.closer
	m.closer = nil
	return c.Close()
}
