package stockticker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"stockticker/internal/domain"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// HasData reports whether the envelope carries a non-null data field.
func (r *Response) HasData() bool {
	d := bytes.TrimSpace(r.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// LoginRequest is the body of POST /auth/login and /auth/register.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginData is the data field of a successful login.
type LoginData struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// StockData is one stored snapshot as served by /stock-data endpoints.
type StockData struct {
	ID          int64         `json:"id,omitempty"`
	Timestamp   Timestamp     `json:"timestamp"`
	StockPrices OrderedPrices `json:"stockPrices"`
}

// Snapshot converts the wire form into a domain snapshot.
func (d StockData) Snapshot() domain.Snapshot {
	snap := domain.NewSnapshot(d.Timestamp.Time, d.StockPrices.Symbols, d.StockPrices.Prices)
	snap.ID = d.ID
	return snap
}

// FromSnapshot is the inverse of StockData.Snapshot.
func FromSnapshot(s domain.Snapshot) StockData {
	return StockData{
		ID:          s.ID,
		Timestamp:   Timestamp{Time: s.Timestamp},
		StockPrices: OrderedPrices{Symbols: s.Symbols, Prices: s.Prices},
	}
}

// PageData is the data field of /stock-data/paginated.
type PageData struct {
	Content       []StockData `json:"content"`
	Page          int         `json:"page"`
	Size          int         `json:"size"`
	TotalElements int64       `json:"totalElements"`
	TotalPages    int         `json:"totalPages"`
}

// ---------------------------------------------------------------------------
// Ordered price map
// ---------------------------------------------------------------------------

// OrderedPrices is a JSON object of symbol to price whose key order survives
// decoding and encoding.
type OrderedPrices struct {
	Symbols []string
	Prices  map[string]float64
}

// UnmarshalJSON requires an object whose values are all finite positive
// numbers.
func (o *OrderedPrices) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stockPrices: expected object, got %v", tok)
	}

	o.Symbols = o.Symbols[:0]
	o.Prices = make(map[string]float64)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		sym, ok := tok.(string)
		if !ok {
			return fmt.Errorf("stockPrices: unexpected key %v", tok)
		}
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		num, ok := tok.(json.Number)
		if !ok {
			return fmt.Errorf("stockPrices: price for %s is not a number", sym)
		}
		price, err := num.Float64()
		if err != nil {
			return fmt.Errorf("stockPrices: price for %s: %w", sym, err)
		}
		if math.IsInf(price, 0) || math.IsNaN(price) || price <= 0 {
			return fmt.Errorf("stockPrices: price for %s is not positive: %s", sym, num)
		}
		if _, dup := o.Prices[sym]; !dup {
			o.Symbols = append(o.Symbols, sym)
		}
		o.Prices[sym] = price
	}
	_, err = dec.Token() // closing brace
	return err
}

// MarshalJSON writes the prices in Symbols order.
func (o OrderedPrices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, sym := range o.Symbols {
		p, ok := o.Prices[sym]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(sym)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(p, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Timestamps
// ---------------------------------------------------------------------------

// TimestampLayout is the local date-time form the server emits.
const TimestampLayout = "2006-01-02T15:04:05"

var timestampLayouts = []string{
	time.RFC3339Nano,
	TimestampLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC 3339 or a zone-less local date-time. Zone-less
// values are read in the local time zone.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Timestamp is a time.Time that marshals as TimestampLayout.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Local().Format(TimestampLayout))
}
