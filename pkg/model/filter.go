package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterOp defines the supported filter operators.
type FilterOp string

const (
	OpEq       FilterOp = "=="       // Equal
	OpNe       FilterOp = "!="       // Not equal
	OpGt       FilterOp = ">"        // Greater than
	OpGte      FilterOp = ">="       // Greater than or equal
	OpLt       FilterOp = "<"        // Less than
	OpLte      FilterOp = "<="       // Less than or equal
	OpIn       FilterOp = "in"       // Value in array
	OpContains FilterOp = "contains" // Array contains value
)

// ValidOps returns all valid filter operators.
func ValidOps() []FilterOp {
	return []FilterOp{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains}
}

// IsValid checks if the operator is valid.
func (op FilterOp) IsValid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

func (op FilterOp) queryOperator() string {
	switch op {
	case OpEq:
		return "$eq"
	case OpNe:
		return "$ne"
	case OpGt:
		return "$gt"
	case OpGte:
		return "$gte"
	case OpLt:
		return "$lt"
	case OpLte:
		return "$lte"
	case OpIn:
		return "$in"
	case OpContains:
		return "$all"
	}
	return ""
}

// Filters is a conjunction of simple field comparisons.
type Filters []Filter

// Filter represents a query filter
type Filter struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// Validate checks if the filter is valid.
func (f Filter) Validate() bool {
	if f.Field == "" {
		return false
	}
	return f.Op.IsValid()
}

// ToM compiles the filters into a query document. Several comparisons on
// the same field are merged into one operator document.
func (fs Filters) ToM() (M, error) {
	out := M{}
	for _, f := range fs {
		if !f.Validate() {
			return nil, Errorf(ErrInvalidQuery, "invalid filter on field %q with op %q", f.Field, f.Op)
		}
		value := f.Value
		if f.Op == OpContains {
			value = A{f.Value}
		}
		ops, ok := out[f.Field].(M)
		if !ok {
			ops = M{}
			out[f.Field] = ops
		}
		ops[f.Op.queryOperator()] = value
	}
	return out, nil
}

// ParseFilter parses "field<op>value", e.g. "age>=21" or "tags contains go".
// The expression is split at the leftmost operator, so the value may itself
// contain operator characters. Values that look like integers, floats or
// booleans are typed; "in" takes a comma separated list.
func ParseFilter(expr string) (Filter, error) {
	at, op, sep := -1, FilterOp(""), ""
	for _, candidate := range []FilterOp{OpGte, OpLte, OpEq, OpNe, OpGt, OpLt, OpIn, OpContains} {
		s := string(candidate)
		if candidate == OpIn || candidate == OpContains {
			s = " " + s + " "
		}
		i := strings.Index(expr, s)
		if i <= 0 {
			continue
		}
		// ties go to the longer operator, ">=" over ">"
		if at < 0 || i < at || (i == at && len(s) > len(sep)) {
			at, op, sep = i, candidate, s
		}
	}
	if at < 0 {
		return Filter{}, fmt.Errorf("%w: cannot parse filter %q", ErrInvalidQuery, expr)
	}

	raw := strings.TrimSpace(expr[at+len(sep):])
	f := Filter{Field: strings.TrimSpace(expr[:at]), Op: op, Value: parseScalar(raw)}
	if op == OpIn {
		parts := strings.Split(raw, ",")
		values := make(A, len(parts))
		for j, p := range parts {
			values[j] = parseScalar(strings.TrimSpace(p))
		}
		f.Value = values
	}
	return f, nil
}

func parseScalar(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return strings.Trim(s, `"'`)
}
