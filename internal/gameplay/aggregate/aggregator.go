// Package aggregate accumulates per game, team, player and class totals from an event stream.
package aggregate

import (
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/gamestate"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

// Aggregator is a stream handler. It must be registered after the tracker it
// was created with, so round numbers and rosters are current for every record.
type Aggregator struct {
	tracker *gamestate.Tracker
	mapping *Mapping
	path    string

	Game              Bucket
	Teams             []Bucket
	Players           []Bucket
	WeaponClasses     []Bucket
	DamageClasses     []Bucket
	ProjectileClasses []Bucket
	PawnClasses       []Bucket

	unmapped map[events.EventID]bool
}

// New creates an aggregator reading round and roster state from tracker.
// The default mapping is used when mapping is nil.
func New(tracker *gamestate.Tracker, mapping *Mapping) *Aggregator {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	a := &Aggregator{tracker: tracker, mapping: mapping}
	tracker.AddListener(a)
	return a
}

func (a *Aggregator) PreProcessStream(info statsfile.StreamInfo) {
	a.path = info.Path
	a.Game = Bucket{}
	a.unmapped = make(map[events.EventID]bool)
	meta := info.Metadata
	if meta == nil {
		meta = statsfile.NewMetadata()
	}
	a.Teams = make([]Bucket, meta.NumTeams())
	a.Players = make([]Bucket, meta.NumPlayers())
	a.WeaponClasses = make([]Bucket, meta.WeaponClasses.Len())
	a.DamageClasses = make([]Bucket, meta.DamageClasses.Len())
	a.ProjectileClasses = make([]Bucket, meta.ProjectileClasses.Len())
	a.PawnClasses = make([]Bucket, meta.PawnClasses.Len())
}

func (a *Aggregator) PostProcessStream() {}

// accumulate adds v to the whole game period and, once a round has started, to the current round
func (a *Aggregator) accumulate(b *Bucket, id events.AggregateID, v float64) {
	a.accumulateRound(b, a.tracker.Round(), id, v)
}

func (a *Aggregator) accumulateRound(b *Bucket, round int, id events.AggregateID, v float64) {
	if id == NoAggregate {
		return
	}
	b.add(WholeGame, id, v)
	if round > WholeGame {
		b.add(round, id, v)
	}
}

func validIndex(buckets []Bucket, i int) bool {
	return i >= 0 && i < len(buckets)
}

// fanOut credits a player, the player's current team and the game
func (a *Aggregator) fanOut(player int, id events.AggregateID, v float64) {
	if validIndex(a.Players, player) {
		a.accumulate(&a.Players[player], id, v)
		if team := a.tracker.PlayerTeam(player); validIndex(a.Teams, team) {
			a.accumulate(&a.Teams[team], id, v)
		}
	}
	a.accumulate(&a.Game, id, v)
}

func (a *Aggregator) teamFanOut(team int, id events.AggregateID, v float64) {
	if validIndex(a.Teams, team) {
		a.accumulate(&a.Teams[team], id, v)
	}
	a.accumulate(&a.Game, id, v)
}

func (a *Aggregator) classRollUp(classes []Bucket, class int, id events.AggregateID, v float64) {
	if validIndex(classes, class) {
		a.accumulate(&classes[class], id, v)
	}
}

func (a *Aggregator) HandleEvent(rec *statsfile.EventRecord, payload events.Payload) {
	target, ok := a.mapping.Lookup(rec.Header.EventID)
	if !ok {
		if !a.unmapped[rec.Header.EventID] {
			a.unmapped[rec.Header.EventID] = true
			log.WithFields(log.Fields{"path": a.path, "event": rec.Header.EventID}).Debug("No aggregate mapping for event")
		}
		return
	}
	fwd, rev := target.Forward, target.Reverse

	switch rec.Header.EventID {
	case events.EventMatchStarted, events.EventMatchEnded, events.EventRoundStarted, events.EventRoundEnded:
		// markers carry the round number, each one counts once
		a.accumulate(&a.Game, fwd, 1)
		return
	}

	switch p := payload.(type) {
	case *events.GameIntEvent:
		a.accumulate(&a.Game, fwd, float64(p.Value))
	case *events.GameFloatEvent:
		a.accumulate(&a.Game, fwd, float64(p.Value))
	case *events.GamePositionEvent:
		a.accumulate(&a.Game, fwd, float64(p.Value))
	case *events.GameStringEvent:
		a.accumulate(&a.Game, fwd, 1)

	case *events.TeamIntEvent:
		a.teamFanOut(p.TeamIndex(), fwd, float64(p.Value))
	case *events.TeamFloatEvent:
		a.teamFanOut(p.TeamIndex(), fwd, float64(p.Value))
	case *events.TeamStringEvent:
		a.teamFanOut(p.TeamIndex(), fwd, 1)

	case *events.PlayerIntEvent:
		a.fanOut(p.PlayerIndex(), fwd, float64(p.Value))
	case *events.PlayerFloatEvent:
		a.fanOut(p.PlayerIndex(), fwd, float64(p.Value))
	case *events.PlayerStringEvent:
		a.fanOut(p.PlayerIndex(), fwd, 1)
	case *events.PlayerLoginEvent:
		a.fanOut(p.PlayerIndex(), fwd, 1)
	case *events.PlayerSpawnEvent:
		a.fanOut(p.PlayerIndex(), fwd, 1)
		a.classRollUp(a.PawnClasses, int(p.PawnClass), fwd, 1)

	case *events.PlayerKillDeathEvent:
		a.fanOut(p.PlayerIndex(), fwd, 1)
		a.fanOut(p.TargetIndex(), rev, 1)
		a.classRollUp(a.DamageClasses, int(p.DamageClass), fwd, 1)
	case *events.PlayerPlayerEvent:
		a.fanOut(p.PlayerIndex(), fwd, 1)
		a.fanOut(p.TargetIndex(), rev, 1)

	case *events.WeaponIntEvent:
		a.fanOut(p.PlayerIndex(), fwd, float64(p.Value))
		a.classRollUp(a.WeaponClasses, int(p.WeaponClass), fwd, float64(p.Value))
	case *events.DamageIntEvent:
		a.fanOut(p.PlayerIndex(), fwd, float64(p.Value))
		a.fanOut(p.TargetIndex(), rev, float64(p.Value))
		a.classRollUp(a.DamageClasses, int(p.DamageClass), fwd, float64(p.Value))
	case *events.ProjectileIntEvent:
		a.fanOut(p.PlayerIndex(), fwd, float64(p.Value))
		a.classRollUp(a.ProjectileClasses, int(p.ProjectileClass), fwd, float64(p.Value))
	}
}

// LifeSpanEnded credits time alive and one life to the player, the player's team and the game.
// The tracker reports each span once, in the round it was closed in.
func (a *Aggregator) LifeSpanEnded(span gamestate.LifeSpan) {
	d := float64(span.Duration)
	if validIndex(a.Players, span.Player) {
		a.accumulateRound(&a.Players[span.Player], span.Round, events.AggregatePlayerTimeAlive, d)
		a.accumulateRound(&a.Players[span.Player], span.Round, events.AggregatePlayerLives, 1)
	}
	if validIndex(a.Teams, span.Team) {
		a.accumulateRound(&a.Teams[span.Team], span.Round, events.AggregatePlayerTimeAlive, d)
		a.accumulateRound(&a.Teams[span.Team], span.Round, events.AggregatePlayerLives, 1)
	}
	a.accumulateRound(&a.Game, span.Round, events.AggregatePlayerTimeAlive, d)
	a.accumulateRound(&a.Game, span.Round, events.AggregatePlayerLives, 1)
}

func (a *Aggregator) Tracker() *gamestate.Tracker {
	return a.tracker
}
