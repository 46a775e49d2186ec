package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zhouzirui/medassist/backend/internal/model/chat"
	"github.com/zhouzirui/medassist/backend/internal/storage"
)

const (
	// ChatsKey holds the whole chat list as one JSON blob.
	ChatsKey = "medassist:chats"
	// PreferencesKey holds the preferences record.
	PreferencesKey = "medassist:preferences"

	// DefaultTitle names a chat until its first user message arrives.
	DefaultTitle   = "New chat"
	MaxTitleLength = 120

	derivedTitleLength = 40
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrTitleTooLong    = errors.New("chat title too long")
)

// Service keeps the chat list in memory and writes it back to the store
// after every change.
type Service struct {
	mu    sync.RWMutex
	store storage.KV
	chats []chat.Chat
}

// NewService loads the saved chat list from store. A missing list starts
// empty. Messages left streaming by a previous run are finalized.
func NewService(ctx context.Context, store storage.KV) (*Service, error) {
	s := &Service{store: store, chats: make([]chat.Chat, 0, 16)}

	data, err := store.Get(ctx, ChatsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}

	if err := json.Unmarshal(data, &s.chats); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}

	interrupted := 0
	for i := range s.chats {
		for j := range s.chats[i].Messages {
			if s.chats[i].Messages[j].IsStreaming {
				s.chats[i].Messages[j].IsStreaming = false
				interrupted++
			}
		}
	}
	if interrupted > 0 {
		log.Printf("[chat] finalized %d interrupted messages on load", interrupted)
	}

	log.Printf("[chat] loaded %d chats", len(s.chats))
	return s, nil
}

// CreateChat starts an empty chat. A blank title uses DefaultTitle.
func (s *Service) CreateChat(ctx context.Context, title string) (chat.Chat, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return chat.Chat{}, ErrTitleTooLong
	}
	if title == "" {
		title = DefaultTitle
	}

	now := time.Now().UTC()
	c := chat.Chat{
		ID:        uuid.NewString(),
		Title:     title,
		Messages:  []chat.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append([]chat.Chat{c}, s.chats...)
	if err := s.saveLocked(ctx, next); err != nil {
		return chat.Chat{}, err
	}
	return cloneChat(c), nil
}

// ListChats returns every chat, most recently created first.
func (s *Service) ListChats(_ context.Context) []chat.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]chat.Chat, len(s.chats))
	for i, c := range s.chats {
		list[i] = cloneChat(c)
	}
	return list
}

// GetChat returns a copy of a chat.
func (s *Service) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(chatID)
	if idx < 0 {
		return chat.Chat{}, ErrChatNotFound
	}
	return cloneChat(s.chats[idx]), nil
}

// DeleteChat removes a chat and its messages.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(chatID)
	if idx < 0 {
		return ErrChatNotFound
	}
	next := make([]chat.Chat, 0, len(s.chats)-1)
	next = append(next, s.chats[:idx]...)
	next = append(next, s.chats[idx+1:]...)
	return s.saveLocked(ctx, next)
}

// AppendMessage adds message to a chat, assigning its id and timestamp. The
// first user message renames a chat that still has the default title.
func (s *Service) AppendMessage(ctx context.Context, chatID string, message chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(chatID)
	if idx < 0 {
		return chat.Message{}, ErrChatNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	next, c := s.editLocked(idx)
	if message.Role == chat.RoleUser && c.Title == DefaultTitle {
		if title := deriveTitle(message.Content); title != "" {
			c.Title = title
		}
	}
	c.Messages = append(c.Messages, cloneMessage(message))
	c.UpdatedAt = time.Now().UTC()

	if err := s.saveLocked(ctx, next); err != nil {
		return chat.Message{}, err
	}
	return cloneMessage(message), nil
}

// UpdateMessage replaces the stored message with the same id.
func (s *Service) UpdateMessage(ctx context.Context, chatID string, message chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, pos, err := s.messageLocked(chatID, message.ID)
	if err != nil {
		return err
	}
	next, c := s.editLocked(idx)
	c.Messages[pos] = cloneMessage(message)
	c.UpdatedAt = time.Now().UTC()
	return s.saveLocked(ctx, next)
}

// SetMessageFlags updates the flagged and saved markers. Nil leaves a marker
// unchanged.
func (s *Service) SetMessageFlags(ctx context.Context, chatID, messageID string, flagged, saved *bool) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, pos, err := s.messageLocked(chatID, messageID)
	if err != nil {
		return chat.Message{}, err
	}
	next, c := s.editLocked(idx)
	m := &c.Messages[pos]

	m.Metadata = cloneMetadata(m.Metadata)
	if flagged != nil {
		m.Metadata.Flagged = *flagged
	}
	if saved != nil {
		m.Metadata.Saved = *saved
	}

	if err := s.saveLocked(ctx, next); err != nil {
		return chat.Message{}, err
	}
	return cloneMessage(*m), nil
}

// Preferences returns the saved preferences, or the defaults if none exist.
func (s *Service) Preferences(ctx context.Context) (chat.Preferences, error) {
	data, err := s.store.Get(ctx, PreferencesKey)
	if errors.Is(err, storage.ErrNotFound) {
		return chat.DefaultPreferences(), nil
	}
	if err != nil {
		return chat.Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	prefs := chat.DefaultPreferences()
	if err := json.Unmarshal(data, &prefs); err != nil {
		return chat.Preferences{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences replaces the preferences record.
func (s *Service) SavePreferences(ctx context.Context, prefs chat.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.store.Set(ctx, PreferencesKey, data); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

func (s *Service) indexLocked(chatID string) int {
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			return i
		}
	}
	return -1
}

// messageLocked returns the chat index and message position of messageID.
func (s *Service) messageLocked(chatID, messageID string) (int, int, error) {
	idx := s.indexLocked(chatID)
	if idx < 0 {
		return -1, -1, ErrChatNotFound
	}
	for i, m := range s.chats[idx].Messages {
		if m.ID == messageID {
			return idx, i, nil
		}
	}
	return -1, -1, ErrMessageNotFound
}

// editLocked copies the chat list and the chat at idx so it can be changed
// without touching s.chats. The copy is committed by saveLocked.
func (s *Service) editLocked(idx int) ([]chat.Chat, *chat.Chat) {
	next := append([]chat.Chat(nil), s.chats...)
	next[idx].Messages = append([]chat.Message(nil), s.chats[idx].Messages...)
	return next, &next[idx]
}

// saveLocked stores next and only then makes it the current chat list, so a
// failed write leaves memory matching the store.
func (s *Service) saveLocked(ctx context.Context, next []chat.Chat) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode chats: %w", err)
	}
	if err := s.store.Set(ctx, ChatsKey, data); err != nil {
		return fmt.Errorf("failed to save chats: %w", err)
	}
	s.chats = next
	return nil
}

func deriveTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(title) <= derivedTitleLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:derivedTitleLength])) + "..."
}

func cloneChat(c chat.Chat) chat.Chat {
	messages := make([]chat.Message, len(c.Messages))
	for i, m := range c.Messages {
		messages[i] = cloneMessage(m)
	}
	c.Messages = messages
	return c
}

func cloneMessage(m chat.Message) chat.Message {
	if m.Metadata != nil {
		m.Metadata = cloneMetadata(m.Metadata)
	}
	return m
}

// cloneMetadata never returns nil.
func cloneMetadata(meta *chat.Metadata) *chat.Metadata {
	if meta == nil {
		return &chat.Metadata{}
	}
	c := *meta
	return &c
}
