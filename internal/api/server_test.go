package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chathub/pkg/types"
)

type stubHealth struct{ err error }

func (s *stubHealth) HealthCheck(_ context.Context) error { return s.err }

type stubStats struct{}

func (s *stubStats) Stats() map[string]int {
	return map[string]int{"connections": 2, "online_users": 1}
}

type stubPresence struct{ entries []types.OnlineUserEntry }

func (s *stubPresence) Snapshot() []types.OnlineUserEntry { return s.entries }

type stubModeration struct {
	rules *types.ChatRules
	ann   *types.Announcement
	err   error
}

func (s *stubModeration) GlobalMute(_ context.Context) (*types.GlobalMuteState, error) {
	return &types.GlobalMuteState{}, nil
}
func (s *stubModeration) SetGlobalMute(_ context.Context, _ bool) error { return nil }
func (s *stubModeration) SetGlobalMuteRange(_ context.Context, _, _ *int64) error {
	return nil
}
func (s *stubModeration) MuteInfo(_ context.Context, _ string) (*types.MuteRecord, error) {
	return nil, nil
}
func (s *stubModeration) Mute(_ context.Context, _ string, _ int, _, _ string) (*types.MuteRecord, error) {
	return nil, nil
}
func (s *stubModeration) Unmute(_ context.Context, _ string) error { return nil }
func (s *stubModeration) ListMutes(_ context.Context) ([]*types.MuteRecord, error) {
	return nil, nil
}
func (s *stubModeration) Rules(_ context.Context) (*types.ChatRules, error) {
	return s.rules, s.err
}
func (s *stubModeration) SetRules(_ context.Context, rules *types.ChatRules) (*types.ChatRules, error) {
	return rules, nil
}
func (s *stubModeration) Announcement(_ context.Context) (*types.Announcement, error) {
	return s.ann, s.err
}
func (s *stubModeration) SetAnnouncement(_ context.Context, _ string) (*types.Announcement, error) {
	return nil, nil
}

func newTestServer(health error) *Server {
	return NewServer(
		&stubHealth{err: health},
		&stubStats{},
		&stubPresence{entries: []types.OnlineUserEntry{{UserID: "u1", Username: "alice"}}},
		&stubModeration{
			rules: types.DefaultRules(),
			ann:   &types.Announcement{Text: "hi", UpdatedAt: time.Now().UnixMilli()},
		},
	)
}

func TestServer_HealthCheck(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", resp.Status)
	}
	if resp.Connections["connections"] != 2 {
		t.Errorf("Expected connection stats passthrough, got %v", resp.Connections)
	}
}

func TestServer_HealthCheckUnhealthy(t *testing.T) {
	server := newTestServer(errors.New("db down"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rec.Code)
	}
}

func TestServer_Online(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/online", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Online []types.OnlineUserEntry `json:"online"`
		Count  int                     `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Online) != 1 || resp.Online[0].UserID != "u1" {
		t.Errorf("Unexpected online payload: %+v", resp)
	}
}

func TestServer_AnnouncementAndRules(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/announcement", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for announcement, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rules", nil)
	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for rules, got %d", rec.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/online", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	server := newTestServer(nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/rules", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers on preflight response")
	}
}
