package crud

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
)

// Query parameter names understood by the backend
const (
	ParamWhere   = "where"
	ParamOrderBy = "order_by"
	ParamLimit   = "limit"
	ParamOffset  = "offset"
	ParamCount   = "count"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order sorts by one column
type Order struct {
	Column    string
	Direction Direction
}

// OrderBy is an ordered list of sort keys. It encodes as a JSON object whose
// keys keep the order they were given in.
type OrderBy []Order

// MarshalJSON writes {"col":"asc",...} in slice order
func (o OrderBy) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ord := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ord.Column)
		if err != nil {
			return nil, err
		}
		dir := ord.Direction
		if dir == "" {
			dir = Asc
		}
		value, err := json.Marshal(string(dir))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Filter narrows a collection read. Zero-valued fields are absent:
// an empty Where or OrderBy, and a Limit or Offset <= 0, send nothing.
type Filter struct {
	Where   map[string]any
	OrderBy OrderBy
	Limit   int
	Offset  int
}

// Params translates the filter into query parameters. A nil or empty filter
// yields no parameters at all.
func (f *Filter) Params() (url.Values, error) {
	params := url.Values{}
	if f == nil {
		return params, nil
	}

	if len(f.Where) > 0 {
		where, err := json.Marshal(f.Where)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode where clause: %v", apperrors.ErrInvalidInput, err)
		}
		params.Set(ParamWhere, string(where))
	}
	if len(f.OrderBy) > 0 {
		for _, ord := range f.OrderBy {
			if ord.Column == "" {
				return nil, fmt.Errorf("%w: order by entry without a column", apperrors.ErrInvalidInput)
			}
			if ord.Direction != "" && ord.Direction != Asc && ord.Direction != Desc {
				return nil, fmt.Errorf("%w: invalid sort direction %q for column %s",
					apperrors.ErrInvalidInput, ord.Direction, ord.Column)
			}
		}
		orderBy, err := json.Marshal(f.OrderBy)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode order by: %v", apperrors.ErrInvalidInput, err)
		}
		params.Set(ParamOrderBy, string(orderBy))
	}
	if f.Limit > 0 {
		params.Set(ParamLimit, strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		params.Set(ParamOffset, strconv.Itoa(f.Offset))
	}
	return params, nil
}
