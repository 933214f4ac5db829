package localdb

import (
	"github.com/snowflk/statsdb/internal/gameplay/events"
)

// TimeWindow is an inclusive range of session timestamps
type TimeWindow struct {
	Start float32 `json:"start"`
	End   float32 `json:"end"`
}

// Contains reports whether ts lies in the window, a nil window contains everything
func (w *TimeWindow) Contains(ts float32) bool {
	if w == nil {
		return true
	}
	return ts >= w.Start && ts <= w.End
}

type SearchQuery struct {
	// SessionIDs are local keys (<guid>_<instance>) or remote keys (<guid>:<instance>)
	SessionIDs    []string         `json:"sessions"`
	PlayerIndices []int            `json:"players,omitempty"`
	TeamIndices   []int            `json:"teams,omitempty"`
	EventIDs      []events.EventID `json:"events,omitempty"`
	Rounds        []int            `json:"rounds,omitempty"`
	Window        *TimeWindow      `json:"window,omitempty"`
}

// SessionResult holds the matching event indices of one session in ascending order
type SessionResult struct {
	SessionID string `json:"session"`
	Events    []int  `json:"events"`
}

// RecordSet is the result of a query, one result per queried session in query order
type RecordSet struct {
	Results []SessionResult `json:"results"`
}

// Len is the number of events over all sessions
func (rs RecordSet) Len() int {
	n := 0
	for _, r := range rs.Results {
		n += len(r.Events)
	}
	return n
}
