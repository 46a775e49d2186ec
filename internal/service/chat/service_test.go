package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/medassist/backend/internal/service/chat"
	"github.com/zhouzirui/medassist/backend/internal/storage"
)

func newService(t *testing.T, kv storage.KV) *chatservice.Service {
	t.Helper()
	svc, err := chatservice.NewService(context.Background(), kv)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc
}

func TestServiceGetChat(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	created, err := svc.CreateChat(ctx, "Migraine questions")
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}

	got, err := svc.GetChat(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	if got.ID != created.ID || got.Title != "Migraine questions" {
		t.Fatalf("unexpected chat: %+v", got)
	}
	if got.Messages == nil {
		t.Fatal("expected empty, non-nil message list")
	}
}

func TestServiceGetChatNotFound(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())

	if _, err := svc.GetChat(context.Background(), "missing"); !errors.Is(err, chatservice.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestServiceCreateChatTitleRules(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "   ")
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}
	if c.Title != chatservice.DefaultTitle {
		t.Fatalf("expected default title, got %q", c.Title)
	}

	if _, err := svc.CreateChat(ctx, strings.Repeat("a", chatservice.MaxTitleLength+1)); !errors.Is(err, chatservice.ErrTitleTooLong) {
		t.Fatalf("expected ErrTitleTooLong, got %v", err)
	}
}

func TestServiceFirstUserMessageNamesChat(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	c, _ := svc.CreateChat(ctx, "")
	if _, err := svc.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleUser, Content: "I have had a  headache\nfor three days and it is getting worse"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	got, _ := svc.GetChat(ctx, c.ID)
	if got.Title != "I have had a headache for three days and..." {
		t.Fatalf("unexpected derived title %q", got.Title)
	}

	if _, err := svc.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleUser, Content: "second"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}
	got, _ = svc.GetChat(ctx, c.ID)
	if !strings.HasPrefix(got.Title, "I have had") {
		t.Fatalf("title should not change after the first message, got %q", got.Title)
	}
}

func TestServiceUpdateMessage(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	c, _ := svc.CreateChat(ctx, "t")
	msg, err := svc.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleAssistant, IsStreaming: true})
	if err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned: %+v", msg)
	}

	msg.Content = "Rest."
	msg.IsStreaming = false
	if err := svc.UpdateMessage(ctx, c.ID, msg); err != nil {
		t.Fatalf("UpdateMessage err: %v", err)
	}

	got, _ := svc.GetChat(ctx, c.ID)
	if got.Messages[0].Content != "Rest." || !got.Messages[0].Finalized() {
		t.Fatalf("message not updated: %+v", got.Messages[0])
	}

	msg.ID = "missing"
	if err := svc.UpdateMessage(ctx, c.ID, msg); !errors.Is(err, chatservice.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestServiceSetMessageFlags(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	c, _ := svc.CreateChat(ctx, "t")
	msg, _ := svc.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "x"})

	yes, no := true, false
	updated, err := svc.SetMessageFlags(ctx, c.ID, msg.ID, &yes, nil)
	if err != nil {
		t.Fatalf("SetMessageFlags err: %v", err)
	}
	if !updated.Metadata.Flagged || updated.Metadata.Saved {
		t.Fatalf("unexpected metadata: %+v", updated.Metadata)
	}

	updated, _ = svc.SetMessageFlags(ctx, c.ID, msg.ID, &no, &yes)
	if updated.Metadata.Flagged || !updated.Metadata.Saved {
		t.Fatalf("unexpected metadata: %+v", updated.Metadata)
	}

	// Returned copies must not alias stored state.
	updated.Metadata.Saved = false
	got, _ := svc.GetChat(ctx, c.ID)
	if !got.Messages[0].Metadata.Saved {
		t.Fatal("stored metadata changed through returned copy")
	}
}

func TestServicePersistsAcrossRestart(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()

	first := newService(t, kv)
	c, _ := first.CreateChat(ctx, "persisted")
	_, _ = first.AppendMessage(ctx, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "partial", IsStreaming: true})

	second := newService(t, kv)
	got, err := second.GetChat(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetChat after restart err: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].IsStreaming {
		t.Fatalf("expected interrupted message to be finalized on load: %+v", got.Messages)
	}

	if err := second.DeleteChat(ctx, c.ID); err != nil {
		t.Fatalf("DeleteChat err: %v", err)
	}
	data, _ := kv.Get(ctx, chatservice.ChatsKey)
	var saved []chat.Chat
	if err := json.Unmarshal(data, &saved); err != nil || len(saved) != 0 {
		t.Fatalf("expected empty saved list, got %s (%v)", data, err)
	}
}

func TestServiceListNewestFirst(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	a, _ := svc.CreateChat(ctx, "a")
	b, _ := svc.CreateChat(ctx, "b")

	list := svc.ListChats(ctx)
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestServicePreferences(t *testing.T) {
	svc := newService(t, storage.NewMemoryKV())
	ctx := context.Background()

	prefs, err := svc.Preferences(ctx)
	if err != nil {
		t.Fatalf("Preferences err: %v", err)
	}
	if prefs != chat.DefaultPreferences() {
		t.Fatalf("expected defaults, got %+v", prefs)
	}

	prefs.Theme = "dark"
	prefs.VoiceEnabled = true
	if err := svc.SavePreferences(ctx, prefs); err != nil {
		t.Fatalf("SavePreferences err: %v", err)
	}

	got, _ := svc.Preferences(ctx)
	if got != prefs {
		t.Fatalf("preferences not saved: %+v", got)
	}
}

type failingKV struct{ storage.KV }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestServiceReportsSaveFailure(t *testing.T) {
	svc := newService(t, failingKV{storage.NewMemoryKV()})
	ctx := context.Background()

	if _, err := svc.CreateChat(ctx, "t"); err == nil {
		t.Fatal("expected save error")
	}
	if got := svc.ListChats(ctx); len(got) != 0 {
		t.Fatalf("failed create kept %d chats in memory", len(got))
	}
}

// switchKV fails every Set once fail is true.
type switchKV struct {
	storage.KV
	fail bool
}

func (k *switchKV) Set(ctx context.Context, key string, value []byte) error {
	if k.fail {
		return errors.New("disk full")
	}
	return k.KV.Set(ctx, key, value)
}

func TestServiceKeepsStateWhenSaveFails(t *testing.T) {
	kv := &switchKV{KV: storage.NewMemoryKV()}
	svc := newService(t, kv)
	ctx := context.Background()

	created, err := svc.CreateChat(ctx, "")
	if err != nil {
		t.Fatalf("CreateChat err: %v", err)
	}
	msg, err := svc.AppendMessage(ctx, created.ID, chat.Message{Role: chat.RoleAssistant, Content: "draft", IsStreaming: true})
	if err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}
	before, _ := svc.GetChat(ctx, created.ID)

	kv.fail = true
	flag := true

	if _, err := svc.CreateChat(ctx, "other"); err == nil {
		t.Fatal("CreateChat: expected save error")
	}
	if _, err := svc.AppendMessage(ctx, created.ID, chat.Message{Role: chat.RoleUser, Content: "renames the chat"}); err == nil {
		t.Fatal("AppendMessage: expected save error")
	}
	final := msg
	final.Content = "final answer"
	final.IsStreaming = false
	if err := svc.UpdateMessage(ctx, created.ID, final); err == nil {
		t.Fatal("UpdateMessage: expected save error")
	}
	if _, err := svc.SetMessageFlags(ctx, created.ID, msg.ID, &flag, &flag); err == nil {
		t.Fatal("SetMessageFlags: expected save error")
	}
	if err := svc.DeleteChat(ctx, created.ID); err == nil {
		t.Fatal("DeleteChat: expected save error")
	}

	if got := svc.ListChats(ctx); len(got) != 1 {
		t.Fatalf("expected 1 chat after failed writes, got %d", len(got))
	}
	after, err := svc.GetChat(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetChat err: %v", err)
	}
	if after.Title != before.Title || after.Title != chatservice.DefaultTitle {
		t.Fatalf("title changed to %q", after.Title)
	}
	if len(after.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(after.Messages))
	}
	m := after.Messages[0]
	if m.Content != "draft" || !m.IsStreaming || m.Metadata != nil {
		t.Fatalf("message changed despite failed saves: %+v", m)
	}

	kv.fail = false
	if _, err := svc.SetMessageFlags(ctx, created.ID, msg.ID, &flag, nil); err != nil {
		t.Fatalf("SetMessageFlags err: %v", err)
	}
	reloaded := newService(t, kv)
	got, err := reloaded.GetChat(ctx, created.ID)
	if err != nil {
		t.Fatalf("reloaded GetChat err: %v", err)
	}
	if meta := got.Messages[0].Metadata; meta == nil || !meta.Flagged || meta.Saved {
		t.Fatalf("unexpected stored metadata: %+v", meta)
	}
}
