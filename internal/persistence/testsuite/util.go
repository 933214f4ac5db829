package testsuite

import (
	"fmt"

	"github.com/snowflk/statsdb/internal/persistence"
)

func rawSession(guid string, instance int32) persistence.RawSession {
	return persistence.RawSession{
		Key:           fmt.Sprintf("%s:%d", guid, instance),
		SessionID:     guid,
		Instance:      instance,
		FormatVersion: 14,
		BigEndian:     instance%2 == 1,
		Title:         0x4d5707d2,
		MapName:       "DM-Deck",
		StartTime:     10.5,
		EndTime:       612.25,
		Info:          []byte(fmt.Sprintf("info-%s-%d", guid, instance)),
		Metadata:      []byte{0, 1, 2, 3, 0xff},
	}
}

// rawEvents returns n rows starting at index from. Rows alternate between player, team and game rows.
func rawEvents(from, n int) []persistence.RawEvent {
	rows := make([]persistence.RawEvent, n)
	for i := range rows {
		index := from + i
		row := persistence.RawEvent{
			Index:       index,
			EventType:   uint16(index % 19),
			EventID:     uint16(1000 + index%40),
			Timestamp:   float32(index) * 0.5,
			PlayerIndex: -1,
			TargetIndex: -1,
			TeamIndex:   -1,
			Round:       index / 10,
			Payload:     []byte(fmt.Sprintf("payload-%d", index)),
		}
		switch index % 3 {
		case 0:
			row.PlayerIndex = index % 4
			row.TargetIndex = (index + 1) % 4
		case 1:
			row.TeamIndex = index % 2
		}
		rows[i] = row
	}
	return rows
}
