package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/medassist/backend/internal/service/chat"
	"github.com/zhouzirui/medassist/backend/internal/storage"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	chatSvc, err := chatservice.NewService(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func doRequest(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateChat(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(r, http.MethodPost, "/chats", map[string]string{"title": "Sleep"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var created chat.Chat
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if created.ID == "" || created.Title != "Sleep" {
		t.Fatalf("unexpected chat: %+v", created)
	}
}

func TestCreateChatWithoutBody(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(r, http.MethodPost, "/chats", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestCreateChatTitleTooLong(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(r, http.MethodPost, "/chats", map[string]string{"title": strings.Repeat("x", 200)})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetChatNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doRequest(r, http.MethodGet, "/chats/missing", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListAndDeleteChat(t *testing.T) {
	r, svc := setupRouter(t)
	c, _ := svc.CreateChat(context.Background(), "a")

	resp := doRequest(r, http.MethodGet, "/chats", nil)
	var list []chat.Chat
	_ = json.NewDecoder(resp.Body).Decode(&list)
	if len(list) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(list))
	}

	resp = doRequest(r, http.MethodDelete, "/chats/"+c.ID, nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	resp = doRequest(r, http.MethodDelete, "/chats/"+c.ID, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.Code)
	}
}

func TestUpdateMessageFlags(t *testing.T) {
	r, svc := setupRouter(t)
	ctx := context.Background()
	c, _ := svc.CreateChat(ctx, "a")
	msg, _ := svc.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "Rest."})

	resp := doRequest(r, http.MethodPatch, "/chats/"+c.ID+"/messages/"+msg.ID, map[string]bool{"flagged": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var updated chat.Message
	_ = json.NewDecoder(resp.Body).Decode(&updated)
	if updated.Metadata == nil || !updated.Metadata.Flagged {
		t.Fatalf("expected flagged metadata, got %+v", updated.Metadata)
	}

	resp = doRequest(r, http.MethodPatch, "/chats/"+c.ID+"/messages/"+msg.ID, map[string]bool{})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", resp.Code)
	}

	resp = doRequest(r, http.MethodPatch, "/chats/"+c.ID+"/messages/missing", map[string]bool{"saved": true})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing message, got %d", resp.Code)
	}
}

func TestExportChat(t *testing.T) {
	r, svc := setupRouter(t)
	ctx := context.Background()
	c, _ := svc.CreateChat(ctx, "Headache")
	_, _ = svc.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleUser, Content: "I have a headache"})

	resp := doRequest(r, http.MethodGet, "/chats/"+c.ID+"/export?format=md", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(resp.Header().Get("Content-Disposition"), ".md") {
		t.Fatalf("unexpected disposition %q", resp.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(resp.Body.String(), "I have a headache") {
		t.Fatalf("export missing message: %s", resp.Body.String())
	}

	resp = doRequest(r, http.MethodGet, "/chats/"+c.ID+"/export?format=pdf", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", resp.Code)
	}
}
