//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	got, err := IntToUint32(123)
	require.NoError(t, err)
	assert.Equal(t, uint32(123), got)

	_, err = IntToUint32(-1)
	assert.ErrorIs(t, err, ErrOverflow)

	if math.MaxInt > math.MaxUint32 {
		_, err = IntToUint32(math.MaxUint32 + 1)
		assert.ErrorIs(t, err, ErrOverflow)
	}
}

func TestIntToInt32(t *testing.T) {
	got, err := IntToInt32(-5)
	require.NoError(t, err)
	assert.Equal(t, int32(-5), got)

	if math.MaxInt > math.MaxInt32 {
		_, err = IntToInt32(math.MaxInt32 + 1)
		assert.ErrorIs(t, err, ErrOverflow)
	}
}

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Uint64ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)

	n, err := Uint32ToInt(7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
