package conversation

import (
	"slices"
	"time"

	"spaces-client/internal/entity"
)

// DateLayout formats group keys.
const DateLayout = "2006-01-02"

// DateGroup is one calendar day of the log.
type DateGroup struct {
	Date      string
	Messages  []entity.ChatMessage
	Collapsed bool
}

// groupByDate partitions messages by calendar date in loc, keeping log
// order inside each group. Undated messages belong to today.
func groupByDate(messages []entity.ChatMessage, today time.Time, loc *time.Location, overrides map[string]bool) []DateGroup {
	index := make(map[string]int)
	var groups []DateGroup

	for _, msg := range messages {
		day := today
		if msg.Timestamp != nil {
			day = *msg.Timestamp
		}
		key := day.In(loc).Format(DateLayout)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{Date: key})
		}
		groups[i].Messages = append(groups[i].Messages, msg)
	}

	slices.SortStableFunc(groups, func(a, b DateGroup) int {
		switch {
		case a.Date < b.Date:
			return -1
		case a.Date > b.Date:
			return 1
		}
		return 0
	})

	for i := range groups {
		collapsed := i != len(groups)-1
		if v, ok := overrides[groups[i].Date]; ok {
			collapsed = v
		}
		groups[i].Collapsed = collapsed
	}
	return groups
}
