package filter

import (
	"fmt"
	"time"
)

// Limits on caller-supplied filters.
const (
	MaxFilters    = 32
	MaxListValues = 100
)

// Operator is a comparison applied to a single field.
type Operator string

// Supported operators.
const (
	Eq         Operator = "eq"
	Neq        Operator = "neq"
	Contains   Operator = "contains"
	StartsWith Operator = "startswith"
	EndsWith   Operator = "endswith"
	In         Operator = "in"
	NotIn      Operator = "not_in"
)

// IsValid checks if the operator is one of the supported values.
func (o Operator) IsValid() bool {
	switch o {
	case Eq, Neq, Contains, StartsWith, EndsWith, In, NotIn:
		return true
	}
	return false
}

// IsList reports whether the operator takes a list of values.
func (o Operator) IsList() bool { return o == In || o == NotIn }

// IsPattern reports whether the operator is a substring match.
func (o Operator) IsPattern() bool { return o == Contains || o == StartsWith || o == EndsWith }

// Type is the value type a field is compared as.
type Type string

// Supported value types.
const (
	String  Type = "string"
	Number  Type = "number"
	Boolean Type = "boolean"
	Date    Type = "date"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	return t == String || t == Number || t == Boolean || t == Date
}

// builtinTypes fixes the value type of the reserved fields. Every other field name
// addresses a memo metadata key and accepts any type.
var builtinTypes = map[string]Type{
	"memo_uuid":      String,
	"memo_title":     String,
	"chunk_position": Number,
	"created_at":     Date,
	"updated_at":     Date,
}

// BuiltinType returns the fixed type of a reserved field.
func BuiltinType(field string) (Type, bool) {
	t, ok := builtinTypes[field]
	return t, ok
}

// Filter is a validated field/operator/value condition. Values are normalized to
// string, float64, bool or time.Time according to the filter type.
type Filter struct {
	field    string
	operator Operator
	typ      Type
	values   []any
}

// New validates and creates a Filter. value must be a list for in/not_in and a
// scalar otherwise.
func New(field string, op Operator, typ Type, value any) (Filter, error) {
	if field == "" {
		return Filter{}, fmt.Errorf("field is required")
	}
	if op == "" {
		return Filter{}, fmt.Errorf("operator is required for field %q", field)
	}
	if !op.IsValid() {
		return Filter{}, fmt.Errorf("unsupported operator %q", op)
	}
	if typ == "" {
		return Filter{}, fmt.Errorf("filter_type is required for field %q", field)
	}
	if !typ.IsValid() {
		return Filter{}, fmt.Errorf("unsupported filter_type %q", typ)
	}
	if want, ok := builtinTypes[field]; ok && want != typ {
		return Filter{}, fmt.Errorf("field %q is a %s field", field, want)
	}
	if value == nil {
		return Filter{}, fmt.Errorf("value is required for field %q", field)
	}
	if op.IsPattern() && typ != String {
		return Filter{}, fmt.Errorf("operator %s requires filter_type string", op)
	}

	if !op.IsList() {
		if _, isList := value.([]any); isList {
			return Filter{}, fmt.Errorf("operator %s takes a single value", op)
		}
		v, err := normalize(typ, value)
		if err != nil {
			return Filter{}, fmt.Errorf("field %q: %w", field, err)
		}
		return Filter{field: field, operator: op, typ: typ, values: []any{v}}, nil
	}

	list, ok := value.([]any)
	if !ok {
		return Filter{}, fmt.Errorf("operator %s requires a list value", op)
	}
	if len(list) == 0 {
		return Filter{}, fmt.Errorf("operator %s requires at least one value", op)
	}
	if len(list) > MaxListValues {
		return Filter{}, fmt.Errorf("too many values for operator %s (max %d)", op, MaxListValues)
	}
	values := make([]any, len(list))
	for i, item := range list {
		v, err := normalize(typ, item)
		if err != nil {
			return Filter{}, fmt.Errorf("field %q value [%d]: %w", field, i, err)
		}
		values[i] = v
	}
	return Filter{field: field, operator: op, typ: typ, values: values}, nil
}

// Field returns the field name.
func (f Filter) Field() string { return f.field }

// Operator returns the comparison operator.
func (f Filter) Operator() Operator { return f.operator }

// Type returns the value type.
func (f Filter) Type() Type { return f.typ }

// Value returns the scalar operand. For list operators it returns the first element.
func (f Filter) Value() any {
	if len(f.values) == 0 {
		return nil
	}
	return f.values[0]
}

// Values returns all operands.
func (f Filter) Values() []any { return f.values }

func normalize(typ Type, v any) (any, error) {
	switch typ {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value, got %T", v)
		}
		return s, nil
	case Number:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("expected number value, got %T", v)
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean value, got %T", v)
		}
		return b, nil
	case Date:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			return parseDate(d)
		}
		return nil, fmt.Errorf("expected date string, got %T", v)
	}
	return nil, fmt.Errorf("unsupported filter_type %q", typ)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want RFC 3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}
