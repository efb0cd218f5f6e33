package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/memorag/internal/domain"
)

// ErrNotAList is returned when the filters payload is present but is not a JSON array.
var ErrNotAList = domain.NewValidationError("Filters must be a list")

type rawFilter struct {
	Field      *string         `json:"field"`
	Operator   *string         `json:"operator"`
	Value      json.RawMessage `json:"value"`
	FilterType *string         `json:"filter_type"`
}

// Parse decodes and validates a raw filters payload. An absent or null payload yields
// no filters. The first invalid entry aborts parsing.
func Parse(raw json.RawMessage) ([]Filter, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, ErrNotAList
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, invalid("malformed list: %v", err)
	}
	if len(entries) > MaxFilters {
		return nil, invalid("too many filters (max %d)", MaxFilters)
	}

	out := make([]Filter, 0, len(entries))
	for i, entry := range entries {
		var rf rawFilter
		if err := json.Unmarshal(entry, &rf); err != nil {
			return nil, invalid("filters[%d] must be an object", i)
		}
		f, err := rf.toFilter()
		if err != nil {
			return nil, invalid("filters[%d]: %v", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (rf rawFilter) toFilter() (Filter, error) {
	switch {
	case rf.Field == nil || *rf.Field == "":
		return Filter{}, fmt.Errorf("field is required")
	case rf.Operator == nil || *rf.Operator == "":
		return Filter{}, fmt.Errorf("operator is required")
	case len(rf.Value) == 0 || bytes.Equal(bytes.TrimSpace(rf.Value), []byte("null")):
		return Filter{}, fmt.Errorf("value is required")
	case rf.FilterType == nil || *rf.FilterType == "":
		return Filter{}, fmt.Errorf("filter_type is required")
	}

	var value any
	if err := json.Unmarshal(rf.Value, &value); err != nil {
		return Filter{}, fmt.Errorf("malformed value: %w", err)
	}
	return New(*rf.Field, Operator(*rf.Operator), Type(*rf.FilterType), value)
}

func invalid(format string, args ...any) error {
	return domain.NewValidationError("Invalid filter: "+format, args...)
}
