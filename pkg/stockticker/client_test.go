package stockticker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/api/"
	c := NewClient(baseURL, 0)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.BaseURL() != "http://localhost:8080/api" {
		t.Errorf("expected baseURL %q, got %q", "http://localhost:8080/api", c.BaseURL())
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

// serve starts a server answering path with status and body. Requests to
// other paths get 404.
func serve(t *testing.T, path string, status int, body string) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", 2*time.Second), &hits
}

func TestLatestSuccess(t *testing.T) {
	body := `{"success":true,"message":"ok","data":{"id":7,"timestamp":"2024-03-01T14:05:00","stockPrices":{"TSLA":200.5,"AAPL":180,"MSFT":410.25}}}`
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL+"/api", time.Second).Latest(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Latest() error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok")
	}

	want := []string{"TSLA", "AAPL", "MSFT"}
	if len(snap.Symbols) != len(want) {
		t.Fatalf("Symbols = %v, want %v", snap.Symbols, want)
	}
	for i := range want {
		if snap.Symbols[i] != want[i] {
			t.Errorf("Symbols = %v, want payload order %v", snap.Symbols, want)
			break
		}
	}
	if snap.Prices["MSFT"] != 410.25 {
		t.Errorf("Prices[MSFT] = %v, want 410.25", snap.Prices["MSFT"])
	}
	if snap.ID != 7 {
		t.Errorf("ID = %d, want 7", snap.ID)
	}
	wantTS := time.Date(2024, 3, 1, 14, 5, 0, 0, time.Local)
	if !snap.Timestamp.Equal(wantTS) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, wantTS)
	}
}

func TestLatestFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"success":false,"message":"Invalid token"}`, ErrSessionExpired, ""},
		{"server error", http.StatusInternalServerError, `{"success":false}`, ErrFetchFailed, ""},
		{"not found", http.StatusNotFound, `{"success":false,"message":"No stock data found"}`, ErrFetchFailed, ""},
		{"success false", http.StatusOK, `{"success":false,"message":"Feed paused"}`, ErrDataUnavailable, "Feed paused"},
		{"no data", http.StatusOK, `{"success":true}`, ErrDataUnavailable, ""},
		{"null data", http.StatusOK, `{"success":true,"data":null}`, ErrDataUnavailable, ""},
		{"no prices", http.StatusOK, `{"success":true,"data":{"timestamp":"2024-03-01T14:05:00"}}`, ErrDataUnavailable, ""},
		{"prices not object", http.StatusOK, `{"success":true,"data":{"timestamp":"2024-03-01T14:05:00","stockPrices":[1,2]}}`, ErrDataUnavailable, ""},
		{"price not number", http.StatusOK, `{"success":true,"data":{"timestamp":"2024-03-01T14:05:00","stockPrices":{"AAPL":"abc"}}}`, ErrDataUnavailable, ""},
		{"zero price", http.StatusOK, `{"success":true,"data":{"timestamp":"2024-03-01T14:05:00","stockPrices":{"AAPL":180,"MSFT":0}}}`, ErrDataUnavailable, ""},
		{"negative price", http.StatusOK, `{"success":true,"data":{"timestamp":"2024-03-01T14:05:00","stockPrices":{"AAPL":-5}}}`, ErrDataUnavailable, ""},
		{"price out of range", http.StatusOK, `{"success":true,"data":{"timestamp":"2024-03-01T14:05:00","stockPrices":{"AAPL":1e309}}}`, ErrDataUnavailable, ""},
		{"bad timestamp", http.StatusOK, `{"success":true,"data":{"timestamp":"yesterday","stockPrices":{"AAPL":1}}}`, ErrDataUnavailable, ""},
		{"no timestamp", http.StatusOK, `{"success":true,"data":{"stockPrices":{"AAPL":1}}}`, ErrDataUnavailable, ""},
		{"not json", http.StatusOK, `<html>`, ErrDataUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hits := serve(t, "/api/stock-data/latest", tt.status, tt.body)
			_, err := c.Latest(context.Background(), "tok")
			if !errors.Is(err, tt.want) {
				t.Fatalf("Latest() error = %v, want %v", err, tt.want)
			}
			if got := ServerMessage(err); got != tt.message {
				t.Errorf("ServerMessage() = %q, want %q", got, tt.message)
			}
			if hits.Load() != 1 {
				t.Errorf("server hit %d times, want exactly 1 (no retries)", hits.Load())
			}
		})
	}
}

func TestLatestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url+"/api", time.Second).Latest(context.Background(), "tok")
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Latest() error = %v, want ErrFetchFailed", err)
	}
}

func TestLogin(t *testing.T) {
	var got LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Password != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Invalid username or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"abc","username":"admin"}}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL+"/api", time.Second)

	data, err := c.Login(context.Background(), "admin", "admin123")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if data.Token != "abc" || data.Username != "admin" {
		t.Errorf("Login() = %+v", data)
	}
	if got.Username != "admin" {
		t.Errorf("request username = %q, want admin", got.Username)
	}

	_, err = c.Login(context.Background(), "admin", "wrong")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("Login(wrong) error = %v, want ErrAuthFailed", err)
	}
	if msg := ServerMessage(err); msg != "Invalid username or password" {
		t.Errorf("ServerMessage() = %q", msg)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/api", time.Second)
	if _, err := c.Login(context.Background(), "", "x"); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Login(\"\", x) error = %v, want ErrAuthFailed", err)
	}
	if _, err := c.Login(context.Background(), "x", ""); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Login(x, \"\") error = %v, want ErrAuthFailed", err)
	}
}

func TestCountAndHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stock-data/count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":42}`))
	})
	mux.HandleFunc("/api/stock-data/paginated", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" || r.URL.Query().Get("size") != "2" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"content":[
			{"id":2,"timestamp":"2024-03-01T14:06:00","stockPrices":{"B":2,"A":1}},
			{"id":1,"timestamp":"2024-03-01T14:05:00","stockPrices":{"A":1}}],
			"page":1,"size":2,"totalElements":4,"totalPages":2}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := NewClient(srv.URL+"/api", time.Second)

	n, err := c.Count(context.Background(), "tok")
	if err != nil || n != 42 {
		t.Errorf("Count() = %d, %v; want 42, nil", n, err)
	}

	snaps, err := c.History(context.Background(), "tok", 1, 2)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != 2 || snaps[0].Symbols[0] != "B" {
		t.Errorf("History() = %+v", snaps)
	}
}

func TestOrderedPricesRoundTrip(t *testing.T) {
	in := `{"ZZ":1.5,"AA":2,"MM":3.25}`
	var o OrderedPrices
	if err := json.Unmarshal([]byte(in), &o); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("Marshal = %s, want %s", out, in)
	}
}

func TestOrderedPricesRejectsNonPositive(t *testing.T) {
	for _, in := range []string{`{"A":0}`, `{"A":-0.01}`, `{"A":1,"B":-1e308}`, `{"A":1e400}`} {
		var o OrderedPrices
		if err := json.Unmarshal([]byte(in), &o); err == nil {
			t.Errorf("Unmarshal(%s) = %v, want error", in, o.Prices)
		}
	}
	var o OrderedPrices
	if err := json.Unmarshal([]byte(`{"A":1.7976931348623157e308}`), &o); err != nil {
		t.Errorf("Unmarshal(max float) error = %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []string{
		"2024-03-01T14:05:00",
		"2024-03-01 14:05:00",
		"2024-03-01T14:05:00.123",
		"2024-03-01T14:05:00Z",
		"2024-03-01T14:05:00+02:00",
	}
	for _, s := range tests {
		if _, err := ParseTimestamp(s); err != nil {
			t.Errorf("ParseTimestamp(%q) error: %v", s, err)
		}
	}
	if _, err := ParseTimestamp("03/01/2024"); err == nil {
		t.Error("ParseTimestamp(03/01/2024) should fail")
	}
}
