package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b Path
		want int
	}{
		{"equal", Path{1, 2, 3}, Path{1, 2, 3}, 0},
		{"less first dim", Path{1, 2}, Path{2, 2}, -1},
		{"greater last dim", Path{1, 3}, Path{1, 2}, 1},
		{"shorter is less", Path{1}, Path{1, 0}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Compare(tc.b))
		})
	}
}

func TestPathCloneIsIndependent(t *testing.T) {
	p := Path{1, 2, 3}
	c := p.Clone()
	c[0] = 99
	require.Equal(t, ID(1), p[0])
}

func TestPathWith(t *testing.T) {
	p := Path{1, 2, 3}
	w := p.With(1, 42)
	assert.Equal(t, Path{1, 42, 3}, w)
	assert.Equal(t, Path{1, 2, 3}, p, "With must not mutate the receiver")
}
