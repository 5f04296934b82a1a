package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixSecondsSource_SameSecondCollides(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	ticks := []time.Time{base.Add(100 * time.Millisecond), base.Add(900 * time.Millisecond)}
	i := 0
	src := UnixSecondsSource{Now: func() time.Time { ts := ticks[i]; i++; return ts }}

	a, b := src.Next(), src.Next()
	assert.Equal(t, 0, a.Cmp(b))
}

func TestUUIDSource_FitsUint256(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := UUIDSource{}.Next()
		assert.LessOrEqual(t, id.BitLen(), 128)
		assert.False(t, seen[id.String()], "duplicate id %s", id)
		seen[id.String()] = true
	}
}

func TestNewIDSource(t *testing.T) {
	src, err := NewIDSource("")
	require.NoError(t, err)
	assert.IsType(t, UUIDSource{}, src)

	src, err = NewIDSource(IDSourceUnixSeconds)
	require.NoError(t, err)
	assert.IsType(t, UnixSecondsSource{}, src)

	_, err = NewIDSource("counter")
	assert.Error(t, err)
}
