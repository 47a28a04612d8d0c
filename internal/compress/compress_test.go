package compress

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload() []byte {
	r := rand.New(rand.NewPCG(1, 2))
	out := make([]byte, 3*DefaultBlockSize+123)
	for i := range out {
		// Compressible: long runs with some noise.
		if i%97 == 0 {
			out[i] = byte(r.IntN(256))
		} else {
			out[i] = byte(i / 4096)
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	data := payload()
	for _, codec := range []Codec{None, LZ4, ZSTD} {
		t.Run(codec.String(), func(t *testing.T) {
			enc, err := Encode(data, codec)
			require.NoError(t, err)
			assert.True(t, IsEnvelope(enc))
			if codec != None {
				assert.Less(t, len(enc), len(data))
			}

			dec, err := Decode(enc)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(data, dec))
		})
	}
}

func TestIncompressible(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	data := make([]byte, 10_000)
	for i := range data {
		data[i] = byte(r.Uint32())
	}

	enc, err := Encode(data, LZ4)
	require.NoError(t, err)
	assert.Equal(t, prefixSize+blockHeaderSize+len(data), len(enc), "stored raw")

	dec, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, data, dec)
}

func TestEmpty(t *testing.T) {
	enc, err := Encode(nil, ZSTD)
	require.NoError(t, err)
	assert.Len(t, enc, prefixSize)

	dec, err := Decode(enc)
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestDecode_Corrupt(t *testing.T) {
	enc, err := Encode(payload(), ZSTD)
	require.NoError(t, err)

	_, err = Decode([]byte("nope"))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Decode(enc[:len(enc)-10])
	assert.ErrorIs(t, err, ErrCorrupt)

	bad := bytes.Clone(enc)
	bad[4] = 9
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWriter_Closed(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, LZ4, 16)
	require.NoError(t, err)

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.Error(t, err)

	_, err = NewWriter(&buf, Codec(7), 0)
	assert.Error(t, err)
}
