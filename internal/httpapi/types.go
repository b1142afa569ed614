// Package httpapi serves the ticker REST API and the live snapshot
// websocket. Every JSON answer uses the {success, message, data} envelope.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"stockticker/internal/domain"
	"stockticker/pkg/stockticker"
)

// envelope mirrors stockticker.Response with a typed data field.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// UserJSON is the public view of an account.
type UserJSON struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
}

func stockDataList(snaps []domain.Snapshot) []stockticker.StockData {
	out := make([]stockticker.StockData, len(snaps))
	for i, s := range snaps {
		out[i] = stockticker.FromSnapshot(s)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}
