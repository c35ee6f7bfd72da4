package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"defaults", Page{}, Page{Limit: DefaultLimit}},
		{"capped", Page{Limit: 10_000, Offset: 20}, Page{Limit: MaxLimit, Offset: 20}},
		{"negative offset", Page{Limit: 10, Offset: -5}, Page{Limit: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestNewListResult_NeverNilItems(t *testing.T) {
	res := NewListResult[int](nil, 0, Page{Limit: 5})
	assert.NotNil(t, res.Items)
	assert.Equal(t, 5, res.Limit)
}
