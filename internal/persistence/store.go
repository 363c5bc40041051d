package persistence

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/petrijr/stepflow/pkg/api"
)

var (
	// ErrEmptyExternalID is returned when syncing a record without an id.
	ErrEmptyExternalID = errors.New("record has empty external id")

	// ErrUnsupportedFilter is returned for filter operators a store cannot
	// evaluate.
	ErrUnsupportedFilter = errors.New("unsupported record filter")
)

// ExternalIDField is the filter field that selects records by id.
const ExternalIDField = "externalId"

func validateRecords(records []api.Record) error {
	for i, r := range records {
		if r.ExternalID == "" {
			return fmt.Errorf("record %d: %w", i, ErrEmptyExternalID)
		}
	}
	return nil
}

func validateFilters(filters []api.RecordFilter) error {
	for _, f := range filters {
		switch f.Operator {
		case api.FilterEqual, api.FilterNotEqual, api.FilterContains, "":
		default:
			return fmt.Errorf("%w: operator %q on %q", ErrUnsupportedFilter, f.Operator, f.Field)
		}
	}
	return nil
}

// externalIDEquals returns the id an equality filter pins the query to, so
// backends can turn it into a point lookup.
func externalIDEquals(filters []api.RecordFilter) (string, bool) {
	for _, f := range filters {
		if f.Field != ExternalIDField {
			continue
		}
		if f.Operator != api.FilterEqual && f.Operator != "" {
			continue
		}
		if id, ok := f.Value.(string); ok {
			return id, true
		}
	}
	return "", false
}

// MatchRecord reports whether r satisfies every filter. An empty operator
// means equality. Values are compared in their JSON form.
func MatchRecord(r api.Record, filters []api.RecordFilter) bool {
	for _, f := range filters {
		var got any
		if f.Field == ExternalIDField {
			got = r.ExternalID
		} else {
			got = lookupField(r.Data, f.Field)
		}
		if !matchFilter(got, f) {
			return false
		}
	}
	return true
}

func matchFilter(got any, f api.RecordFilter) bool {
	switch f.Operator {
	case api.FilterEqual, "":
		return sameValue(got, f.Value)
	case api.FilterNotEqual:
		return !sameValue(got, f.Value)
	case api.FilterContains:
		s, ok := got.(string)
		sub, ok2 := f.Value.(string)
		return ok && ok2 && strings.Contains(s, sub)
	default:
		return false
	}
}

func lookupField(data map[string]any, field string) any {
	var cur any = data
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func sameValue(a, b any) bool {
	na, errA := normalizeJSON(a)
	nb, errB := normalizeJSON(b)
	if errA != nil || errB != nil {
		return false
	}
	return jsonEqual(na, nb)
}

// FilterRecords returns the records matching filters, sorted by id.
func FilterRecords(in []api.Record, filters []api.RecordFilter) []api.Record {
	out := make([]api.Record, 0, len(in))
	for _, r := range in {
		if MatchRecord(r, filters) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b api.Record) int {
		return strings.Compare(a.ExternalID, b.ExternalID)
	})
	return out
}
