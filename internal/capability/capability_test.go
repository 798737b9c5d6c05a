package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsetOf(t *testing.T) {
	tests := []struct {
		group, slot Set
		want        bool
	}{
		{ReadOnly, ReadWrite, true},
		{WriteOnly, ReadWrite, true},
		{ReadWrite, ReadWrite, true},
		{WriteOnly, WriteOnly, true},
		{ReadOnly, WriteOnly, false},
		{ReadWrite, ReadOnly, false},
		{ReadOnly | AsyncRead, ReadWrite, false},
		{ReadOnly | AsyncRead, ReadWrite | AsyncRead, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.group.SubsetOf(tt.slot), "%s subset of %s", tt.group, tt.slot)
	}
}

func TestOrdinalIgnoresAsyncRead(t *testing.T) {
	assert.Equal(t, 1, WriteOnly.Ordinal())
	assert.Equal(t, 2, ReadOnly.Ordinal())
	assert.Equal(t, 3, ReadWrite.Ordinal())
	assert.Equal(t, ReadOnly.Ordinal(), (ReadOnly | AsyncRead).Ordinal())
}

func TestUnionTurnsReadIntoReadWrite(t *testing.T) {
	assert.Equal(t, ReadWrite, ReadOnly.Union(WriteOnly))
	assert.True(t, ReadWrite.CanRead())
	assert.True(t, ReadWrite.CanWrite())
	assert.False(t, WriteOnly.CanRead())
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []Set{None, WriteOnly, ReadOnly, ReadWrite, ReadOnly | AsyncRead, ReadWrite | AsyncRead} {
		got, err := Parse(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := Parse("rx")
	assert.Error(t, err)
	_, err = Parse("ro+fast")
	assert.Error(t, err)
}
