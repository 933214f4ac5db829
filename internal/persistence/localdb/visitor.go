package localdb

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

// ErrStopVisit ends VisitEntries early without an error
var ErrStopVisit = errors.New("stop visiting")

// Entry is one event of a record set. Payload is one of the event shapes,
// its indices resolve through Metadata.
type Entry struct {
	SessionID string
	Index     int
	Header    events.RecordHeader
	Payload   events.Payload
	Metadata  *statsfile.Metadata
}

type Visitor interface {
	VisitEntry(e *Entry) error
}

type VisitorFunc func(e *Entry) error

func (f VisitorFunc) VisitEntry(e *Entry) error { return f(e) }

func (e *Entry) playerName(index int) string {
	if p, ok := e.Metadata.Player(index); ok {
		return p.PlayerName
	}
	return fmt.Sprintf("#%d", index)
}

func (e *Entry) teamName(index int) string {
	if t, ok := e.Metadata.Team(index); ok {
		return t.TeamName
	}
	return fmt.Sprintf("#%d", index)
}

func className(l *statsfile.NameList, index int32) string {
	if l.Valid(int(index)) {
		return l.Name(int(index))
	}
	return fmt.Sprintf("#%d", index)
}

// Describe renders an entry as one line with names resolved through its metadata
func (e *Entry) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%9.2f %-24s", e.Header.TimeStamp, e.Metadata.EventName(e.Header.EventID))
	if p, ok := e.Payload.(events.PlayerEvent); ok && p.PlayerIndex() >= 0 {
		fmt.Fprintf(&b, " player=%s", e.playerName(p.PlayerIndex()))
	}
	if t, ok := e.Payload.(events.TargetEvent); ok && t.TargetIndex() >= 0 {
		fmt.Fprintf(&b, " target=%s", e.playerName(t.TargetIndex()))
	}
	if t, ok := e.Payload.(events.TeamEvent); ok && t.TeamIndex() >= 0 {
		fmt.Fprintf(&b, " team=%s", e.teamName(t.TeamIndex()))
	}

	m := e.Metadata
	switch p := e.Payload.(type) {
	case *events.GameStringEvent:
		fmt.Fprintf(&b, " value=%q", p.Value)
	case *events.GameIntEvent:
		fmt.Fprintf(&b, " value=%d", p.Value)
	case *events.GameFloatEvent:
		fmt.Fprintf(&b, " value=%g", p.Value)
	case *events.GamePositionEvent:
		fmt.Fprintf(&b, " location=%v value=%g", p.Location, p.Value)
	case *events.TeamStringEvent:
		fmt.Fprintf(&b, " value=%q", p.Value)
	case *events.TeamIntEvent:
		fmt.Fprintf(&b, " value=%d", p.Value)
	case *events.TeamFloatEvent:
		fmt.Fprintf(&b, " value=%g", p.Value)
	case *events.PlayerStringEvent:
		fmt.Fprintf(&b, " value=%q", p.Value)
	case *events.PlayerIntEvent:
		fmt.Fprintf(&b, " value=%d", p.Value)
	case *events.PlayerFloatEvent:
		fmt.Fprintf(&b, " value=%g", p.Value)
	case *events.PlayerSpawnEvent:
		fmt.Fprintf(&b, " pawn=%s", className(&m.PawnClasses, p.PawnClass))
	case *events.PlayerLoginEvent:
		fmt.Fprintf(&b, " splitscreen=%t", p.SplitScreen)
	case *events.PlayerKillDeathEvent:
		fmt.Fprintf(&b, " damage=%s kind=%d", className(&m.DamageClasses, p.DamageClass), p.KillType)
	case *events.WeaponIntEvent:
		fmt.Fprintf(&b, " weapon=%s value=%d", className(&m.WeaponClasses, p.WeaponClass), p.Value)
	case *events.DamageIntEvent:
		fmt.Fprintf(&b, " damage=%s value=%d", className(&m.DamageClasses, p.DamageClass), p.Value)
	case *events.ProjectileIntEvent:
		fmt.Fprintf(&b, " projectile=%s value=%d", className(&m.ProjectileClasses, p.ProjectileClass), p.Value)
	case *events.PlayerLocationsEvent:
		fmt.Fprintf(&b, " players=%d", len(p.Players))
	case *events.GenericParamListEvent:
		names := make([]string, 0, len(p.Params))
		for _, param := range p.Params {
			names = append(names, param.Name+":"+param.Kind.String())
		}
		fmt.Fprintf(&b, " params=[%s]", strings.Join(names, " "))
	}
	return b.String()
}
