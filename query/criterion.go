package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator is a comparison applied by a single criterion.
type Operator string

const (
	Equals      Operator = "eq"
	NotEquals   Operator = "ne"
	LessThan    Operator = "lt"
	GreaterThan Operator = "gt"
	Contains    Operator = "contains"
	StartsWith  Operator = "startswith"
)

// ParseOperator resolves a textual operator name (OData token or a common
// alias) to an Operator.
func ParseOperator(text string) (Operator, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "eq", "equals", "=", "==":
		return Equals, true
	case "ne", "not-equals", "!=", "<>":
		return NotEquals, true
	case "lt", "less-than", "<":
		return LessThan, true
	case "gt", "greater-than", ">":
		return GreaterThan, true
	case "contains":
		return Contains, true
	case "startswith", "starts-with":
		return StartsWith, true
	}
	return "", false
}

// Direction orders a sort field.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Criterion is one field-level predicate. Immutable once constructed.
type Criterion struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// OrderSpec is one sort field with direction; insertion order among specs
// determines tie-break precedence.
type OrderSpec struct {
	Field     string
	Direction Direction
}

func (c Criterion) validate() *CriterionError {
	if strings.TrimSpace(c.Field) == "" {
		return &CriterionError{Field: c.Field, Operator: c.Operator, Reason: "field is empty"}
	}
	switch c.Operator {
	case Equals, NotEquals, LessThan, GreaterThan:
		if !isComparable(c.Value) {
			return &CriterionError{Field: c.Field, Operator: c.Operator, Reason: fmt.Sprintf("value type %T is not comparable", c.Value)}
		}
	case Contains, StartsWith:
		if _, ok := c.Value.(string); !ok {
			return &CriterionError{Field: c.Field, Operator: c.Operator, Reason: fmt.Sprintf("operator requires a string comparand, got %T", c.Value)}
		}
	default:
		return &CriterionError{Field: c.Field, Operator: c.Operator, Reason: "unknown operator"}
	}
	return nil
}

func isComparable(value interface{}) bool {
	switch value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time:
		return true
	}
	return false
}

// expression renders the criterion as an OData filter fragment.
func (c Criterion) expression() string {
	switch c.Operator {
	case Contains, StartsWith:
		return fmt.Sprintf("%s(%s,%s)", c.Operator, c.Field, literal(c.Value))
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Operator, literal(c.Value))
}

// literal renders a comparand as an OData literal. Strings are quoted with
// doubled single quotes, timestamps use RFC3339 unquoted per Graph convention.
func literal(value interface{}) string {
	switch actual := value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(actual, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(actual)
	case time.Time:
		return actual.UTC().Format(time.RFC3339)
	case float32:
		return strconv.FormatFloat(float64(actual), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(actual, 'f', -1, 64)
	default:
		return fmt.Sprintf("%d", actual)
	}
}
