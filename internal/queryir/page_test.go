package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageRequest(t *testing.T) {
	tests := []struct {
		name    string
		offset  int
		limit   int
		wantErr bool
	}{
		{"first page", 0, 10, false},
		{"later page", 30, 10, false},
		{"negative offset", -1, 10, true},
		{"zero limit", 0, 0, true},
		{"negative limit", 0, -5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPageRequest(tt.offset, tt.limit)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrCodeInvalidPage, Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, PageRequest{Offset: tt.offset, Limit: tt.limit}, p)
		})
	}
}

func TestPageOf(t *testing.T) {
	p, err := PageOf(2, 25)
	require.NoError(t, err)
	assert.Equal(t, PageRequest{Offset: 50, Limit: 25}, p)

	_, err = PageOf(-1, 25)
	assert.Equal(t, ErrCodeInvalidPage, Code(err))
}

func TestPageResult_HasNext(t *testing.T) {
	tests := []struct {
		name string
		page PageResult[int]
		want bool
	}{
		{"more rows", PageResult[int]{Items: []int{1, 2}, Total: 5, Offset: 0, Limit: 2}, true},
		{"last full page", PageResult[int]{Items: []int{1, 2}, Total: 4, Offset: 2, Limit: 2}, false},
		{"short page", PageResult[int]{Items: []int{1}, Total: 3, Offset: 2, Limit: 2}, false},
		{"beyond end", PageResult[int]{Items: nil, Total: 3, Offset: 10, Limit: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.page.HasNext())
		})
	}
}

func TestMapPage(t *testing.T) {
	in := PageResult[int]{Items: []int{1, 2}, Total: 7, Offset: 4, Limit: 2}

	out := MapPage(in, func(n int) string { return string(rune('a' + n)) })

	assert.Equal(t, []string{"b", "c"}, out.Items)
	assert.Equal(t, int64(7), out.Total)
	assert.Equal(t, 4, out.Offset)
	assert.Equal(t, 2, out.Limit)
}
