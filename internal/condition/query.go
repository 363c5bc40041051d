package condition

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/petrijr/stepflow/internal/resolve"
	"github.com/petrijr/stepflow/pkg/api"
)

// ErrUnknownOperator is returned for operators outside the supported set.
var ErrUnknownOperator = errors.New("unknown query operator")

// Match reports whether value satisfies every operator in q. An empty
// query matches anything.
//
// Values and operands are compared in their JSON form, so all numbers are
// float64. When value is an array, comparison operators hold if any element
// satisfies them. A standalone value has no parent to be present in, so
// $exists treats nil as missing; use MatchAt to test a path inside a
// document.
func Match(value any, q api.Query) (bool, error) {
	return match(value, value != nil, q)
}

// MatchAt matches the value at path inside doc. $exists tests whether the
// path is present, so a key holding null exists.
func MatchAt(doc any, path string, q api.Query) (bool, error) {
	v, found := resolve.Find(doc, path)
	return match(v, found, q)
}

func match(value any, present bool, q api.Query) (bool, error) {
	v, err := resolve.Normalize(value)
	if err != nil {
		return false, err
	}
	for op, raw := range q {
		operand, err := resolve.Normalize(raw)
		if err != nil {
			return false, fmt.Errorf("operand for %s: %w", op, err)
		}
		ok, err := apply(op, v, present, operand)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func apply(op api.Operator, v any, present bool, operand any) (bool, error) {
	switch op {
	case api.OpEq:
		return equals(v, operand), nil
	case api.OpNe:
		return !equals(v, operand), nil
	case api.OpGt, api.OpGte, api.OpLt, api.OpLte:
		return anyElem(v, func(e any) bool { return compare(op, e, operand) }), nil
	case api.OpIn:
		return in(v, operand)
	case api.OpNin:
		ok, err := in(v, operand)
		return !ok, err
	case api.OpExists:
		want, ok := operand.(bool)
		if !ok {
			return false, fmt.Errorf("%s expects a boolean, got %T", op, operand)
		}
		return present == want, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// equals matches the whole value or, for arrays, any of its elements.
func equals(v, operand any) bool {
	if reflect.DeepEqual(v, operand) {
		return true
	}
	if arr, ok := v.([]any); ok {
		for _, e := range arr {
			if reflect.DeepEqual(e, operand) {
				return true
			}
		}
	}
	return false
}

func in(v, operand any) (bool, error) {
	set, ok := operand.([]any)
	if !ok {
		return false, fmt.Errorf("$in/$nin expects an array, got %T", operand)
	}
	for _, candidate := range set {
		if equals(v, candidate) {
			return true, nil
		}
	}
	return false, nil
}

func anyElem(v any, pred func(any) bool) bool {
	if arr, ok := v.([]any); ok {
		for _, e := range arr {
			if pred(e) {
				return true
			}
		}
		return false
	}
	return pred(v)
}

// compare orders numbers with numbers and strings with strings. Mixed or
// unordered types never match.
func compare(op api.Operator, a, b any) bool {
	var c int
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false
		}
		switch {
		case av < bv:
			c = -1
		case av > bv:
			c = 1
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return false
		}
		c = strings.Compare(av, bv)
	default:
		return false
	}

	switch op {
	case api.OpGt:
		return c > 0
	case api.OpGte:
		return c >= 0
	case api.OpLt:
		return c < 0
	default:
		return c <= 0
	}
}
