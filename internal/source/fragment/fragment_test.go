package fragment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fragwatch/internal/source"
	logx "fragwatch/pkg/logx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL}, logx.Nop())
}

func TestCheckClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		code int
		body string
		want source.Status
	}{
		{name: "available", code: 200, body: "<html>+888 1234</html>", want: source.StatusAvailable},
		{name: "restricted", code: 200, body: "x This phone number is restricted on Telegram x", want: source.StatusRestricted},
		{name: "not found signal", code: 200, body: "Number not found", want: source.StatusNotFound},
		{name: "http 404", code: 404, body: "", want: source.StatusNotFound},
		// Restricted signal outranks a not-found signal on the same page.
		{name: "restricted wins", code: 200, body: "Number not found This phone number is restricted on Telegram", want: source.StatusRestricted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := c.Check(context.Background(), "888123456789")
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Check = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckServerError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	got, err := c.Check(context.Background(), "888123456789")
	if err == nil {
		t.Fatal("expected error for 5xx response")
	}
	if got != source.StatusError {
		t.Fatalf("Check = %v, want %v", got, source.StatusError)
	}
}

func TestCheckRequestPath(t *testing.T) {
	t.Parallel()
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	if _, err := c.Check(context.Background(), "888123456789"); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if gotPath != "/number/888123456789" {
		t.Fatalf("request path = %q", gotPath)
	}
}
