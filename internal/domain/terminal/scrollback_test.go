package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrollback(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		writes []string
		want   string
	}{
		{"empty", 8, nil, ""},
		{"partial", 8, []string{"abc"}, "abc"},
		{"exactly full", 4, []string{"ab", "cd"}, "abcd"},
		{"wraps", 4, []string{"abc", "def"}, "cdef"},
		{"oversized write", 4, []string{"ab", "0123456789"}, "6789"},
		{"many small writes", 3, []string{"a", "b", "c", "d", "e"}, "cde"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewScrollback(tt.size)
			for _, w := range tt.writes {
				n, err := b.Write([]byte(w))
				assert.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, string(b.Bytes()))
			assert.Equal(t, len(tt.want), b.Len())
		})
	}
}

func TestScrollbackDisabled(t *testing.T) {
	b := NewScrollback(0)
	assert.Nil(t, b)

	n, err := b.Write([]byte("ignored"))
	assert.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Zero(t, b.Len())
	assert.Nil(t, b.Bytes())
}

func TestScrollbackBytesIsACopy(t *testing.T) {
	b := NewScrollback(8)
	b.Write([]byte("abc"))

	out := b.Bytes()
	out[0] = 'X'
	assert.Equal(t, "abc", string(b.Bytes()))
}
