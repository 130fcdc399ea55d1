package conversation

import (
	"slices"
	"strings"
	"time"

	"spaces-client/internal/constant"
	"spaces-client/internal/dto"
	"spaces-client/internal/entity"

	"github.com/google/uuid"
)

// Layouts the history endpoint has been seen to emit. Zone-less values are
// read in the session's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stripProvenance removes the "space - " and then "filename - " prefix the
// server stores in front of each turn. Space-wide history also carries
// file-scoped turns, so without a selected file the longest matching name
// from files is stripped.
func stripProvenance(text string, key entity.Selection, files []string) string {
	if key.SpaceName != "" {
		text = strings.TrimPrefix(text, key.SpaceName+constant.ProvenanceSeparator)
	}
	if key.FileName != "" {
		return strings.TrimPrefix(text, key.FileName+constant.ProvenanceSeparator)
	}

	longest := ""
	for _, name := range files {
		if len(name) > len(longest) && strings.HasPrefix(text, name+constant.ProvenanceSeparator) {
			longest = name
		}
	}
	if longest != "" {
		text = strings.TrimPrefix(text, longest+constant.ProvenanceSeparator)
	}
	return text
}

func normalizeSender(sender string) string {
	if strings.EqualFold(strings.TrimSpace(sender), constant.ChatSenderUser) {
		return constant.ChatSenderUser
	}
	return constant.ChatSenderBot
}

// parseHistory turns raw records into chronologically ordered messages.
// Records without a readable timestamp keep their relative order and sort
// after the dated ones.
func parseHistory(records []dto.HistoryRecord, key entity.Selection, files []string, loc *time.Location) []entity.ChatMessage {
	messages := make([]entity.ChatMessage, 0, len(records))
	for _, r := range records {
		msg := entity.ChatMessage{
			Id:     uuid.New(),
			Sender: normalizeSender(r.Sender),
			Text:   stripProvenance(r.Text, key, files),
			Kind:   entity.MessageKindNormal,
		}
		if ts, ok := parseTimestamp(r.Timestamp, loc); ok {
			msg.Timestamp = &ts
		}
		messages = append(messages, msg)
	}

	slices.SortStableFunc(messages, func(a, b entity.ChatMessage) int {
		switch {
		case a.Timestamp == nil && b.Timestamp == nil:
			return 0
		case a.Timestamp == nil:
			return 1
		case b.Timestamp == nil:
			return -1
		}
		return a.Timestamp.Compare(*b.Timestamp)
	})
	return messages
}
