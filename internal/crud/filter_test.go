package crud

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
)

func TestFilterParams(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		want   url.Values
	}{
		{name: "nil filter", filter: nil, want: url.Values{}},
		{name: "empty filter", filter: &Filter{}, want: url.Values{}},
		{name: "empty collections", filter: &Filter{Where: map[string]any{}, OrderBy: OrderBy{}}, want: url.Values{}},
		{
			name:   "limit and offset",
			filter: &Filter{Limit: 10, Offset: 5},
			want:   url.Values{"limit": {"10"}, "offset": {"5"}},
		},
		{name: "non-positive paging is absent", filter: &Filter{Limit: 0, Offset: -3}, want: url.Values{}},
		{
			name:   "order by keeps caller order",
			filter: &Filter{OrderBy: OrderBy{{Column: "name", Direction: Desc}, {Column: "id"}}},
			want:   url.Values{"order_by": {`{"name":"desc","id":"asc"}`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.Params()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterWhereIsJSON(t *testing.T) {
	params, err := (&Filter{Where: map[string]any{"id": "1"}}).Params()
	require.NoError(t, err)
	require.Len(t, params, 1)

	var where map[string]any
	require.NoError(t, json.Unmarshal([]byte(params.Get(ParamWhere)), &where))
	assert.Equal(t, map[string]any{"id": "1"}, where)
}

func TestFilterWhereMultiField(t *testing.T) {
	filter := &Filter{Where: map[string]any{
		"status": "active",
		"age":    map[string]any{"gte": 18},
	}}
	params, err := filter.Params()
	require.NoError(t, err)
	require.Len(t, params[ParamWhere], 1, "one opaque parameter")

	var where map[string]any
	require.NoError(t, json.Unmarshal([]byte(params.Get(ParamWhere)), &where))
	assert.Equal(t, "active", where["status"])
	assert.Equal(t, map[string]any{"gte": float64(18)}, where["age"])
}

func TestFilterInvalid(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
	}{
		{name: "unencodable where", filter: &Filter{Where: map[string]any{"ch": make(chan int)}}},
		{name: "order without column", filter: &Filter{OrderBy: OrderBy{{Direction: Asc}}}},
		{name: "bad direction", filter: &Filter{OrderBy: OrderBy{{Column: "id", Direction: "sideways"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.filter.Params()
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}
