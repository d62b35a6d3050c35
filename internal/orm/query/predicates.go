package query

import (
	"fmt"
	"strings"
)

// Dialect selects placeholder syntax and case-insensitive matching
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// String returns the dialect name
func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Placeholder returns the bind marker for the n-th argument (1-based)
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// likeOperator returns the case-insensitive LIKE operator. SQLite's LIKE is
// already case-insensitive for ASCII.
func (d Dialect) likeOperator() string {
	if d == SQLite {
		return "LIKE"
	}
	return "ILIKE"
}

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpLike
	OpILike
	OpIsNull
	OpIsNotNull
	OpBetween
	OpIEqual
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpLike:
		return "LIKE"
	case OpILike:
		return "ILIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	case OpIEqual:
		return "IEXACT"
	default:
		return "UNKNOWN"
	}
}

// Condition represents a WHERE condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Lookup suffixes accepted by Filter, as in "name__icontains"
var lookups = map[string]struct{}{
	"exact": {}, "iexact": {},
	"contains": {}, "icontains": {},
	"startswith": {}, "istartswith": {},
	"endswith": {}, "iendswith": {},
	"search": {}, "range": {}, "in": {}, "not_in": {}, "not": {},
	"gt": {}, "gte": {}, "lt": {}, "lte": {}, "isnull": {},
}

// IsLookup reports whether s is a supported lookup suffix
func IsLookup(s string) bool {
	_, ok := lookups[s]
	return ok
}

// SplitLookup splits "field__lookup" into its parts. A key without a known
// suffix is an exact match on the whole key.
func SplitLookup(key string) (field, lookup string) {
	idx := strings.LastIndex(key, "__")
	if idx <= 0 {
		return key, "exact"
	}
	if suffix := key[idx+2:]; IsLookup(suffix) {
		return key[:idx], suffix
	}
	return key, "exact"
}

// lookupCondition turns a lookup suffix and value into a Condition
func lookupCondition(field, lookup string, value interface{}) (*Condition, error) {
	cond := &Condition{Field: field, Value: value}
	switch lookup {
	case "exact":
		cond.Operator = OpEqual
	case "not":
		cond.Operator = OpNotEqual
	case "iexact":
		cond.Operator = OpIEqual
	case "contains":
		cond.Operator, cond.Value = OpLike, "%"+escapeLike(value)+"%"
	case "icontains", "search":
		cond.Operator, cond.Value = OpILike, "%"+escapeLike(value)+"%"
	case "startswith":
		cond.Operator, cond.Value = OpLike, escapeLike(value)+"%"
	case "istartswith":
		cond.Operator, cond.Value = OpILike, escapeLike(value)+"%"
	case "endswith":
		cond.Operator, cond.Value = OpLike, "%"+escapeLike(value)
	case "iendswith":
		cond.Operator, cond.Value = OpILike, "%"+escapeLike(value)
	case "gt":
		cond.Operator = OpGreaterThan
	case "gte":
		cond.Operator = OpGreaterThanOrEqual
	case "lt":
		cond.Operator = OpLessThan
	case "lte":
		cond.Operator = OpLessThanOrEqual
	case "in", "not_in":
		values, err := toSlice(value)
		if err != nil {
			return nil, fmt.Errorf("%s__%s: %w", field, lookup, err)
		}
		cond.Operator, cond.Value = OpIn, values
		if lookup == "not_in" {
			cond.Operator = OpNotIn
		}
	case "range":
		values, err := toSlice(value)
		if err != nil || len(values) != 2 {
			return nil, fmt.Errorf("%s__range requires two values", field)
		}
		cond.Operator, cond.Value = OpBetween, values
	case "isnull":
		isNull, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%s__isnull requires a bool", field)
		}
		cond.Operator, cond.Value = OpIsNotNull, nil
		if isNull {
			cond.Operator = OpIsNull
		}
	default:
		return nil, fmt.Errorf("unsupported lookup: %s", lookup)
	}
	return cond, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes value match literally inside a LIKE pattern; the
// statement declares the escape character with ESCAPE '\'
func escapeLike(value interface{}) string {
	return likeEscaper.Replace(fmt.Sprint(value))
}

func toSlice(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		return v, nil
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list value, got %T", value)
	}
}

// conditionToSQL converts a condition to SQL with parameterized values
func conditionToSQL(d Dialect, cond *Condition, paramCounter *int, args *[]interface{}) (string, error) {
	bind := func(v interface{}) string {
		*args = append(*args, v)
		p := d.Placeholder(*paramCounter)
		*paramCounter++
		return p
	}

	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return fmt.Sprintf("%s %s %s", cond.Field, cond.Operator.String(), bind(cond.Value)), nil

	case OpLike:
		return fmt.Sprintf("%s %s %s ESCAPE '\\'", cond.Field, cond.Operator.String(), bind(cond.Value)), nil

	case OpILike:
		return fmt.Sprintf("%s %s %s ESCAPE '\\'", cond.Field, d.likeOperator(), bind(cond.Value)), nil

	case OpIEqual:
		return fmt.Sprintf("UPPER(%s) = UPPER(%s)", cond.Field, bind(cond.Value)), nil

	case OpIn, OpNotIn:
		values, ok := cond.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("%s operator requires []interface{} value", cond.Operator.String())
		}
		if len(values) == 0 {
			// IN () matches nothing, NOT IN () matches everything
			if cond.Operator == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", cond.Field, cond.Operator.String(), strings.Join(placeholders, ", ")), nil

	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator.String()), nil

	case OpBetween:
		values, ok := cond.Value.([]interface{})
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("BETWEEN operator requires [min, max] values")
		}
		lo := bind(values[0])
		hi := bind(values[1])
		return fmt.Sprintf("%s BETWEEN %s AND %s", cond.Field, lo, hi), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}
