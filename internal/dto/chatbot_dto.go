package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ChatRequest struct {
	Space    string `json:"space" validate:"required"`
	Filename string `json:"filename,omitempty"`
	Query    string `json:"query" validate:"required"`
	Model    string `json:"model" validate:"required"`
}

type CitationDTO struct {
	Source string `json:"source"`
	Page   int    `json:"page,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ChatResponse accepts every shape the chat endpoint has produced: an
// Ollama message ({role, content}), a {response} body, or a {text} field.
type ChatResponse struct {
	Role      string        `json:"role,omitempty"`
	Content   string        `json:"content,omitempty"`
	Response  string        `json:"response,omitempty"`
	Text      string        `json:"text,omitempty"`
	Citations []CitationDTO `json:"citations,omitempty"`
}

// Answer returns the first non-empty of content, response and text.
func (r ChatResponse) Answer() string {
	for _, candidate := range []string{r.Content, r.Response, r.Text} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// ParseChatResponse decodes a chat body. Besides JSON objects the endpoint
// may answer with a bare JSON string or plain text; both become Text.
func ParseChatResponse(body []byte) (*ChatResponse, error) {
	trimmed := bytes.TrimSpace(body)
	var resp ChatResponse
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, err
		}
	case trimmed[0] == '"':
		if err := json.Unmarshal(trimmed, &resp.Text); err != nil {
			return nil, err
		}
	default:
		resp.Text = string(trimmed)
	}
	return &resp, nil
}

type HistoryRequest struct {
	Space    string `validate:"required"`
	Filename string
}

type HistoryResponse struct {
	Conversations []HistoryRecord `json:"conversations"`
}

// HistoryRecord is one stored turn. The server emits rows as arrays
// ([sender, text, timestamp, ...]); objects are accepted as well.
type HistoryRecord struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func (r *HistoryRecord) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var row []json.RawMessage
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return err
		}
		if len(row) < 2 {
			return fmt.Errorf("history row has %d columns, want at least 2", len(row))
		}
		fields := []*string{&r.Sender, &r.Text, &r.Timestamp}
		for i := 0; i < len(fields) && i < len(row); i++ {
			if err := unmarshalLoose(row[i], fields[i]); err != nil {
				return fmt.Errorf("history column %d: %w", i, err)
			}
		}
		return nil
	}

	type plain HistoryRecord
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = HistoryRecord(p)
	return nil
}

// unmarshalLoose decodes a string column, tolerating null and non-string scalars.
func unmarshalLoose(raw json.RawMessage, dst *string) error {
	if string(raw) == "null" {
		*dst = ""
		return nil
	}
	if err := json.Unmarshal(raw, dst); err == nil {
		return nil
	}
	var anyValue interface{}
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return err
	}
	*dst = fmt.Sprint(anyValue)
	return nil
}

type SaveConversationMessage struct {
	Sender    string `json:"sender" validate:"required,oneof=user bot"`
	Text      string `json:"text" validate:"required"`
	Timestamp string `json:"timestamp" validate:"required"`
}

type SaveConversationRequest struct {
	Space    string                  `json:"space" validate:"required"`
	Filename string                  `json:"filename,omitempty"`
	Message  SaveConversationMessage `json:"message"`
}
