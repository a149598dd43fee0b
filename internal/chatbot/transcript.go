package chatbot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChatMessage is one entry of a stored transcript
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DecodeTranscript parses the JSON array stored on a conversation.
// An empty column decodes to an empty transcript.
func DecodeTranscript(raw string) ([]ChatMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return []ChatMessage{}, nil
	}
	var msgs []ChatMessage
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	return msgs, nil
}

// EncodeTranscript serialises messages to the JSON array stored on a conversation
func EncodeTranscript(msgs []ChatMessage) (string, error) {
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript: %w", err)
	}
	return string(raw), nil
}

// lastN returns at most n trailing messages
func lastN(msgs []ChatMessage, n int) []ChatMessage {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
