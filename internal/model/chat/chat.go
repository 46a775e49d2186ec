package chat

import "time"

// Chat is an ordered conversation owned by the client.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Preferences is the per-user settings record saved next to the chat list.
type Preferences struct {
	Theme        string `json:"theme"`
	FontSize     string `json:"fontSize"`
	Language     string `json:"language"`
	VoiceEnabled bool   `json:"voiceEnabled"`
	AutoSpeak    bool   `json:"autoSpeak"`
}

// DefaultPreferences mirrors what a fresh client starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:    "system",
		FontSize: "medium",
		Language: "en-US",
	}
}
