package aggregate

import (
	"sort"

	"github.com/snowflk/statsdb/internal/gameplay/events"
)

// WholeGame is the time period covering the entire session. Rounds use their own number.
const WholeGame = 0

// Bucket accumulates totals per time period and aggregate ID
type Bucket struct {
	periods map[int]map[events.AggregateID]float64
}

func (b *Bucket) add(period int, id events.AggregateID, v float64) {
	if b.periods == nil {
		b.periods = make(map[int]map[events.AggregateID]float64)
	}
	values, ok := b.periods[period]
	if !ok {
		values = make(map[events.AggregateID]float64)
		b.periods[period] = values
	}
	values[id] += v
}

// Value returns the total of id in period, 0 when nothing was accumulated
func (b *Bucket) Value(period int, id events.AggregateID) float64 {
	return b.periods[period][id]
}

func (b *Bucket) Has(period int, id events.AggregateID) bool {
	_, ok := b.periods[period][id]
	return ok
}

func (b *Bucket) Empty() bool {
	return len(b.periods) == 0
}

// Periods returns the time periods with data in ascending order
func (b *Bucket) Periods() []int {
	periods := make([]int, 0, len(b.periods))
	for p := range b.periods {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	return periods
}

// IDs returns the aggregate IDs of a period in ascending order
func (b *Bucket) IDs(period int) []events.AggregateID {
	ids := make([]events.AggregateID, 0, len(b.periods[period]))
	for id := range b.periods[period] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
