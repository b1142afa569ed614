package feed

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"stockticker/internal/domain"
)

// snapshotToStruct encodes a snapshot as
// {id, timestamp (RFC 3339), symbols [..], prices {sym: price}}.
func snapshotToStruct(s domain.Snapshot) (*structpb.Struct, error) {
	symbols := make([]any, len(s.Symbols))
	prices := make(map[string]any, len(s.Symbols))
	for i, sym := range s.Symbols {
		symbols[i] = sym
		prices[sym] = s.Prices[sym]
	}
	return structpb.NewStruct(map[string]any{
		"id":        float64(s.ID),
		"timestamp": s.Timestamp.Format(time.RFC3339Nano),
		"symbols":   symbols,
		"prices":    prices,
	})
}

func structToSnapshot(st *structpb.Struct) (domain.Snapshot, error) {
	f := st.GetFields()
	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decoding timestamp: %w", err)
	}

	var symbols []string
	for _, v := range f["symbols"].GetListValue().GetValues() {
		symbols = append(symbols, v.GetStringValue())
	}
	prices := make(map[string]float64, len(symbols))
	for sym, v := range f["prices"].GetStructValue().GetFields() {
		prices[sym] = v.GetNumberValue()
	}

	snap := domain.NewSnapshot(ts, symbols, prices)
	snap.ID = int64(f["id"].GetNumberValue())
	return snap, nil
}
