package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/filter"
)

// Table aliases the compiled predicates refer to. Queries using CompileFilters must
// alias the chunk table as c and the memo table as m.
const (
	ChunkAlias = "c"
	MemoAlias  = "m"
)

// builtinFields maps reserved filter fields to fixed column expressions. Every other
// field name addresses a key of the memo metadata document. Keys must match
// filter.BuiltinType, which has already checked the value type.
var builtinFields = map[string]string{
	"memo_uuid":      "m.uuid::text",
	"memo_title":     "m.title",
	"chunk_position": "c.position",
	"created_at":     "m.created_at",
	"updated_at":     "m.updated_at",
}

// isoDatePattern matches the date and RFC 3339 strings a metadata date filter compares
// against. Other strings compare as NULL instead of failing the cast.
const isoDatePattern = `^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])` +
	`([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}(:?\d{2})?)?)?$`

// Predicate is a list of SQL boolean expressions with their positional arguments.
// Clauses are meant to be ANDed together.
type Predicate struct {
	Clauses []string
	Args    []any
}

// CompileFilters turns validated filters into parameterized predicates. Placeholders
// start at $next. Field names and values are never interpolated into the SQL text:
// built-in fields resolve to fixed expressions and metadata keys are bound as arguments.
func CompileFilters(filters []filter.Filter, next int) (Predicate, error) {
	var p Predicate
	for i, f := range filters {
		clause, args, err := compileOne(f, next)
		if err != nil {
			return Predicate{}, domain.NewValidationError("Invalid filter: filters[%d]: %v", i, err)
		}
		p.Clauses = append(p.Clauses, clause)
		p.Args = append(p.Args, args...)
		next += len(args)
	}
	return p, nil
}

func compileOne(f filter.Filter, next int) (string, []any, error) {
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", next+len(args)-1)
	}

	expr, err := fieldExpr(f, bind)
	if err != nil {
		return "", nil, err
	}

	switch f.Operator() {
	case filter.Eq:
		return expr + " = " + bind(f.Value()), args, nil
	case filter.Neq:
		return expr + " <> " + bind(f.Value()), args, nil
	case filter.Contains:
		return expr + " ILIKE " + bind("%"+escapeLike(f.Value().(string))+"%"), args, nil
	case filter.StartsWith:
		return expr + " LIKE " + bind(escapeLike(f.Value().(string))+"%"), args, nil
	case filter.EndsWith:
		return expr + " LIKE " + bind("%"+escapeLike(f.Value().(string))), args, nil
	case filter.In, filter.NotIn:
		arr, cast, err := arrayArg(f.Type(), f.Values())
		if err != nil {
			return "", nil, err
		}
		placeholder := bind(arr) + cast
		if f.Operator() == filter.In {
			return expr + " = ANY(" + placeholder + ")", args, nil
		}
		return expr + " <> ALL(" + placeholder + ")", args, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", f.Operator())
}

func fieldExpr(f filter.Filter, bind func(any) string) (string, error) {
	if expr, ok := builtinFields[f.Field()]; ok {
		return expr, nil
	}

	key := bind(f.Field())
	switch f.Type() {
	case filter.String:
		return "(m.metadata ->> " + key + ")", nil
	case filter.Number:
		return "(CASE WHEN jsonb_typeof(m.metadata -> " + key + ") = 'number' THEN (m.metadata ->> " +
			key + ")::double precision END)", nil
	case filter.Boolean:
		return "(CASE WHEN jsonb_typeof(m.metadata -> " + key + ") = 'boolean' THEN (m.metadata ->> " +
			key + ")::boolean END)", nil
	case filter.Date:
		return "(CASE WHEN jsonb_typeof(m.metadata -> " + key + ") = 'string' AND (m.metadata ->> " +
			key + ") ~ '" + isoDatePattern + "' THEN (m.metadata ->> " + key + ")::timestamptz END)", nil
	}
	return "", fmt.Errorf("unsupported filter_type %q", f.Type())
}

func arrayArg(typ filter.Type, values []any) (any, string, error) {
	switch typ {
	case filter.String:
		out := make(pq.StringArray, len(values))
		for i, v := range values {
			out[i] = v.(string)
		}
		return out, "::text[]", nil
	case filter.Number:
		out := make(pq.Float64Array, len(values))
		for i, v := range values {
			out[i] = v.(float64)
		}
		return out, "::double precision[]", nil
	case filter.Boolean:
		out := make(pq.BoolArray, len(values))
		for i, v := range values {
			out[i] = v.(bool)
		}
		return out, "::boolean[]", nil
	case filter.Date:
		out := make(pq.StringArray, len(values))
		for i, v := range values {
			out[i] = v.(time.Time).Format(time.RFC3339Nano)
		}
		return out, "::timestamptz[]", nil
	}
	return nil, "", fmt.Errorf("unsupported filter_type %q", typ)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
