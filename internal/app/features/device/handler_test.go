package device_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/rollcall/internal/app/features/device"
	"github.com/dalemusser/rollcall/internal/app/system/auth"
	"github.com/dalemusser/rollcall/internal/app/system/correlator"
	"github.com/dalemusser/rollcall/internal/app/system/devicechan"
	"github.com/dalemusser/rollcall/internal/testutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newRouter(t *testing.T, hub *devicechan.Hub) http.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := device.NewHandler(hub, correlator.New(0, zap.NewNop()), zap.NewNop())
	return device.Routes(h, sm)
}

type statusBody struct {
	Data struct {
		Connected         bool `json:"connected"`
		PendingOperations int  `json:"pendingOperations"`
	} `json:"data"`
}

func status(t *testing.T, router http.Handler) statusBody {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(t, "GET", "/status", nil, testutil.LecturerUser()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var body statusBody
	testutil.DecodeJSON(t, rec, &body)
	return body
}

func TestServeStatus_RequiresSignIn(t *testing.T) {
	hub := devicechan.New("", zap.NewNop())
	defer hub.Close()
	rec := httptest.NewRecorder()
	newRouter(t, hub).ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status code = %d, want 401", rec.Code)
	}
}

func TestServeSocket_ConnectsDevice(t *testing.T) {
	hub := devicechan.New("secret", zap.NewNop())
	defer hub.Close()
	router := newRouter(t, hub)
	srv := httptest.NewServer(router)
	defer srv.Close()

	if status(t, router).Data.Connected {
		t.Fatal("no device should be connected yet")
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without token should fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthorized dial status = %d", resp.StatusCode)
	}

	ws, _, err := websocket.DefaultDialer.Dial(url+"?token=secret", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !status(t, router).Data.Connected {
		if time.Now().After(deadline) {
			t.Fatal("device never reported connected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Frames sent through the hub reach the socket.
	if err := hub.Send(context.Background(), "enroll", map[string]string{"correlationKey": "k1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg devicechan.Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	var data map[string]string
	_ = json.Unmarshal(msg.Data, &data)
	if msg.Event != "enroll" || data["correlationKey"] != "k1" {
		t.Errorf("got %s %v", msg.Event, data)
	}
}
