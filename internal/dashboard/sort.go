package dashboard

import (
	"sort"
	"strings"

	"stockticker/internal/domain"
)

// SortField names a sortable StockRecord column.
type SortField string

const (
	SortSymbol        SortField = "symbol"
	SortCurrentPrice  SortField = "currentPrice"
	SortChange        SortField = "change"
	SortChangePercent SortField = "changePercent"
	SortDayHigh       SortField = "dayHigh"
	SortDayLow        SortField = "dayLow"
)

// SortFields is the column order of the table, also the cycle order of the
// client's sort key.
var SortFields = []SortField{
	SortSymbol,
	SortCurrentPrice,
	SortChange,
	SortChangePercent,
	SortDayHigh,
	SortDayLow,
}

// Valid reports whether f is a known field.
func (f SortField) Valid() bool {
	_, ok := numericKey(f)
	return ok || f == SortSymbol
}

// Next returns the field after f in SortFields, wrapping around. An unknown
// field yields the first one.
func (f SortField) Next() SortField {
	for i, sf := range SortFields {
		if sf == f {
			return SortFields[(i+1)%len(SortFields)]
		}
	}
	return SortFields[0]
}

// SortFieldLabel returns a short column label for the given field.
func SortFieldLabel(f SortField) string {
	switch f {
	case SortSymbol:
		return "SYM"
	case SortCurrentPrice:
		return "LAST"
	case SortChange:
		return "CHG"
	case SortChangePercent:
		return "CHG%"
	case SortDayHigh:
		return "HIGH"
	case SortDayLow:
		return "LOW"
	default:
		return "?"
	}
}

// columnHeaders maps the table header captions to their fields.
var columnHeaders = map[string]SortField{
	"symbol":     SortSymbol,
	"last price": SortCurrentPrice,
	"change":     SortChange,
	"change %":   SortChangePercent,
	"day high":   SortDayHigh,
	"day low":    SortDayLow,
}

// ParseSortColumn maps a column header caption ("Last Price", "Change %")
// or a field name to a SortField. Unknown captions return false.
func ParseSortColumn(header string) (SortField, bool) {
	h := strings.ToLower(strings.TrimSpace(header))
	if f, ok := columnHeaders[h]; ok {
		return f, true
	}
	for _, f := range SortFields {
		if strings.EqualFold(string(f), h) {
			return f, true
		}
	}
	return "", false
}

func numericKey(f SortField) (func(*domain.StockRecord) float64, bool) {
	switch f {
	case SortCurrentPrice:
		return func(r *domain.StockRecord) float64 { return r.CurrentPrice }, true
	case SortChange:
		return func(r *domain.StockRecord) float64 { return r.Change }, true
	case SortChangePercent:
		return func(r *domain.StockRecord) float64 { return r.ChangePercent }, true
	case SortDayHigh:
		return func(r *domain.StockRecord) float64 { return r.DayHigh }, true
	case SortDayLow:
		return func(r *domain.StockRecord) float64 { return r.DayLow }, true
	}
	return nil, false
}

// Sort returns a stably sorted copy of records. Symbol sorts ascending; every
// numeric field sorts descending. An unknown field returns an unsorted copy.
func Sort(records []domain.StockRecord, field SortField) []domain.StockRecord {
	out := make([]domain.StockRecord, len(records))
	copy(out, records)

	if field == SortSymbol {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Symbol < out[j].Symbol
		})
		return out
	}

	key, ok := numericKey(field)
	if !ok {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(&out[i]) > key(&out[j])
	})
	return out
}
