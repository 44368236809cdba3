package pagination

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/rshade/recbatch/internal/record"
)

// recordFields maps sort field names to comparators.
//
//nolint:gochecknoglobals // Read-only lookup table.
var recordFields = map[string]func(a, b record.Record) int{
	"id":     func(a, b record.Record) int { return cmp.Compare(a.ID, b.ID) },
	"name":   func(a, b record.Record) int { return strings.Compare(a.Name, b.Name) },
	"status": func(a, b record.Record) int { return strings.Compare(a.Status, b.Status) },
	"email":  func(a, b record.Record) int { return strings.Compare(a.Email, b.Email) },
}

// SortFields returns the accepted sort field names in order.
func SortFields() []string {
	fields := lo.Keys(recordFields)
	slices.Sort(fields)
	return fields
}

// SortRecords returns a sorted copy of recs. Ties are broken by ID so the
// order is stable across runs.
func SortRecords(recs []record.Record, sortStr string) ([]record.Record, error) {
	field, order, err := ParseSort(sortStr)
	if err != nil {
		return nil, err
	}
	compare, ok := recordFields[field]
	if !ok {
		return nil, fmt.Errorf("invalid sort field %q (valid: %s)", field, strings.Join(SortFields(), ", "))
	}

	sorted := slices.Clone(recs)
	slices.SortStableFunc(sorted, func(a, b record.Record) int {
		c := compare(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if order == SortOrderDesc {
			return -c
		}
		return c
	})
	return sorted, nil
}
