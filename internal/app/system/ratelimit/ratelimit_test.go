package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndRefill(t *testing.T) {
	l := New(3, time.Hour)
	defer l.Close()

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("fourth request should be limited")
	}
	if l.Remaining("1.2.3.4") != 0 {
		t.Errorf("Remaining = %d, want 0", l.Remaining("1.2.3.4"))
	}
	if !l.Allow("5.6.7.8") {
		t.Error("other keys are limited independently")
	}

	// one token refills every 20 minutes
	now = now.Add(20 * time.Minute)
	if !l.Allow("1.2.3.4") {
		t.Error("expected a refilled token")
	}

	l.Reset("1.2.3.4")
	if l.Remaining("1.2.3.4") != 3 {
		t.Errorf("Remaining after Reset = %d, want 3", l.Remaining("1.2.3.4"))
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l := New(1, time.Hour)
	defer l.Close()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		want int
	}{
		{"first", http.StatusOK},
		{"second", http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/v1/courses/CS101", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("%s: missing X-RateLimit-Limit header", tt.name)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "10.0.0.1:80", "9.9.9.9"},
		{"real ip", map[string]string{"X-Real-IP": " 8.8.8.8 "}, "10.0.0.1:80", "8.8.8.8"},
		{"remote addr", nil, "7.7.7.7:1234", "7.7.7.7"},
		{"remote no port", nil, "7.7.7.7", "7.7.7.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
