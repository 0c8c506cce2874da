package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/engine"
)

func newAdminServer(t *testing.T) (*httptest.Server, *engine.Service) {
	t.Helper()
	service := newTestService(t)
	admin := NewAdminHandler(service, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", admin.HostSessions)
	mux.HandleFunc("/sessions/rebuild", admin.Rebuild)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func TestAdminHostSessions(t *testing.T) {
	server, service := newAdminServer(t)
	ctx := context.Background()

	ack, err := service.StartSession(ctx, "quiz-1", "host-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	resp, err := http.Get(server.URL + "/sessions?hostId=host-1")
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var summaries []domain.SessionSummary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != ack.SessionID || summaries[0].Code != ack.Code {
		t.Fatalf("expected the started session in the listing, got %+v", summaries)
	}
}

func TestAdminHostSessionsRequiresHostID(t *testing.T) {
	server, _ := newAdminServer(t)

	resp, err := http.Get(server.URL + "/sessions")
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without hostId, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/sessions?hostId=host-1", "application/json", nil)
	if err != nil {
		t.Fatalf("post sessions: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", resp.StatusCode)
	}
}

func TestAdminRebuild(t *testing.T) {
	server, service := newAdminServer(t)
	ctx := context.Background()

	ack, err := service.StartSession(ctx, "quiz-1", "host-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := service.JoinSession(ctx, ack.Code, "u1", "Alice"); err != nil {
		t.Fatalf("join session: %v", err)
	}

	resp, err := http.Post(server.URL+"/sessions/rebuild?sessionId="+ack.SessionID, "application/json", nil)
	if err != nil {
		t.Fatalf("post rebuild: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode rebuild response: %v", err)
	}
	if body["status"] != "rebuilt" || body["sessionId"] != ack.SessionID {
		t.Fatalf("unexpected rebuild response %+v", body)
	}
}

func TestAdminRebuildUnknownSession(t *testing.T) {
	server, _ := newAdminServer(t)

	resp, err := http.Post(server.URL+"/sessions/rebuild?sessionId=nope", "application/json", nil)
	if err != nil {
		t.Fatalf("post rebuild: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/sessions/rebuild?sessionId=nope")
	if err != nil {
		t.Fatalf("get rebuild: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp.StatusCode)
	}
}
