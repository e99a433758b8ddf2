package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moorlog/internal/store"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		live       []string
		want       string
		ok         bool
	}{
		{"second candidate", []string{"A", "B"}, []string{"B"}, "B", true},
		{"priority order", []string{"A", "B"}, []string{"B", "A"}, "A", true},
		{"case folded", []string{"newtubesn"}, []string{"NewTubeSN"}, "NewTubeSN", true},
		{"none live", []string{"A", "B"}, nil, "", false},
		{"no candidates", nil, []string{"A"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.candidates, store.NewColumnSet(tt.live...))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolverRecordsMismatches(t *testing.T) {
	r := NewResolver("repair_normalized", store.NewColumnSet("site"))

	col, ok := r.Resolve("site", []string{"site"})
	require.True(t, ok)
	assert.Equal(t, "site", col)
	assert.Empty(t, r.Mismatches())

	_, ok = r.Resolve("tube_new_sn", []string{"NewTubeSN", "tube_new_sn"})
	require.False(t, ok)

	require.Len(t, r.Mismatches(), 1)
	m := r.Mismatches()[0]
	assert.Equal(t, "tube_new_sn", m.Field)
	assert.Equal(t, "repair_normalized.tube_new_sn: none of [NewTubeSN, tube_new_sn] exists", m.String())
}
