package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mentorspark/sessiond/internal/adapters/signal"
	"github.com/mentorspark/sessiond/internal/app"
	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/clock"
	"github.com/mentorspark/sessiond/internal/config"
)

func testRouter(t *testing.T) (*auth.Issuer, http.Handler) {
	t.Helper()
	cfg := &config.Config{
		Mode:         "release",
		Secret:       "test-secret",
		TokenTTL:     time.Hour,
		ReadLimit:    65536,
		PingPeriod:   54 * time.Second,
		RoomCapacity: 2,
	}
	issuer := auth.NewIssuer(cfg.Secret, cfg.TokenTTL, clock.Real{})
	presence := app.NewPresence()
	registry := app.NewRegistry(cfg.RoomCapacity, clock.Real{})
	rooms := app.NewRooms(cfg.EmptyRoomGrace, clock.Real{}, registry.IsEmpty, presence)
	relay := app.NewRelay(registry, rooms, presence)
	ctl := signal.NewController(relay, presence, nil, cfg)
	return issuer, SetupRouter(context.Background(), cfg, issuer, ctl)
}

func TestTokenEndpoint_MintsVerifiableToken(t *testing.T) {
	issuer, router := testRouter(t)

	body := strings.NewReader(`{"sessionName":"mentor-session-42"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/session/token", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token     string `json:"token"`
		UserID    string `json:"userId"`
		MeetingID string `json:"meetingId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MeetingID != "mentor-session-42" || resp.UserID == "" || resp.Token == "" {
		t.Fatalf("response = %+v", resp)
	}

	claims, err := issuer.Verify(resp.Token)
	if err != nil {
		t.Fatalf("minted token failed verification: %v", err)
	}
	if claims.UserID != resp.UserID || claims.MeetingID != "mentor-session-42" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestTokenEndpoint_RejectsMissingSessionName(t *testing.T) {
	_, router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/token", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSignalEndpoint_RejectsBadToken(t *testing.T) {
	_, router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ws/signal?token=garbage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPresenceEndpoint_RejectsBadToken(t *testing.T) {
	_, router := testRouter(t)

	for _, target := range []string{"/api/ws/presence", "/api/ws/presence?token=garbage"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s status = %d, want 401", target, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	_, router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
