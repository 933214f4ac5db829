package statsfile

import (
	"strconv"

	"github.com/snowflk/statsdb/internal/gameplay/archive"
	"github.com/snowflk/statsdb/internal/gameplay/events"
)

// maxDictionary bounds every footer array, indices must fit the packed 16 bit form
const maxDictionary = 0xFFFE

type PlayerInfo struct {
	ControllerName string
	PlayerName     string
	UniqueID       string
	IsBot          bool
}

func (p *PlayerInfo) Serialize(ar *archive.Archive) {
	ar.String(&p.ControllerName)
	ar.String(&p.PlayerName)
	ar.OptString(archive.FeaturePlayerUniqueID, &p.UniqueID, "")
	ar.Bool(&p.IsBot)
}

type TeamInfo struct {
	TeamIndex int32
	TeamName  string
	// TeamColor is packed RGBA
	TeamColor uint32
	MaxSize   int32
}

func (t *TeamInfo) Serialize(ar *archive.Archive) {
	ar.Int32(&t.TeamIndex)
	ar.String(&t.TeamName)
	ar.Uint32(&t.TeamColor)
	ar.Int32(&t.MaxSize)
}

// NameList is a find-or-insert dictionary of names referenced by index
type NameList struct {
	names []string
	index map[string]int
}

// Resolve returns the index of name, appending it when absent. It returns
// IndexNone once the list is full.
func (l *NameList) Resolve(name string) int {
	if i, ok := l.index[name]; ok {
		return i
	}
	if len(l.names) >= maxDictionary {
		return events.IndexNone
	}
	if l.index == nil {
		l.index = make(map[string]int)
	}
	l.names = append(l.names, name)
	l.index[name] = len(l.names) - 1
	return len(l.names) - 1
}

func (l *NameList) Valid(i int) bool {
	return i >= 0 && i < len(l.names)
}

// Name returns the entry at i, or "" when i is out of range
func (l *NameList) Name(i int) string {
	if !l.Valid(i) {
		return ""
	}
	return l.names[i]
}

func (l *NameList) Len() int {
	return len(l.names)
}

func (l *NameList) Names() []string {
	return l.names
}

func (l *NameList) Serialize(ar *archive.Archive) {
	n := len(l.names)
	ar.Count(&n, maxDictionary)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		l.names = make([]string, n)
		l.index = make(map[string]int, n)
	}
	for i := range l.names {
		ar.String(&l.names[i])
		if ar.IsLoading() {
			if _, dup := l.index[l.names[i]]; !dup {
				l.index[l.names[i]] = i
			}
		}
	}
}

func (l *NameList) copyFrom(src *NameList) {
	l.names = append([]string(nil), src.names...)
	l.index = make(map[string]int, len(l.names))
	for i, name := range l.names {
		if _, dup := l.index[name]; !dup {
			l.index[name] = i
		}
	}
}

func (l *NameList) empty() {
	l.names = nil
	l.index = nil
}

// Metadata holds the footer dictionaries of one file. Payloads reference its
// entries only by index.
type Metadata struct {
	SupportedEvents []events.MetaData

	players     []PlayerInfo
	playerIndex map[string]int
	teams       []TeamInfo

	WeaponClasses     NameList
	DamageClasses     NameList
	PawnClasses       NameList
	ProjectileClasses NameList
	Actors            NameList
	SoundCues         NameList
}

func NewMetadata() *Metadata {
	return &Metadata{}
}

// ResolvePlayerIndex finds or inserts a player keyed by controller name
func (m *Metadata) ResolvePlayerIndex(p PlayerInfo) int {
	if i, ok := m.playerIndex[p.ControllerName]; ok {
		return i
	}
	if len(m.players) >= maxDictionary {
		return events.IndexNone
	}
	if m.playerIndex == nil {
		m.playerIndex = make(map[string]int)
	}
	m.players = append(m.players, p)
	m.playerIndex[p.ControllerName] = len(m.players) - 1
	return len(m.players) - 1
}

// ResolveTeamIndex finds or inserts a team keyed by name and in-game index
func (m *Metadata) ResolveTeamIndex(t TeamInfo) int {
	for i := range m.teams {
		if m.teams[i].TeamIndex == t.TeamIndex && m.teams[i].TeamName == t.TeamName {
			return i
		}
	}
	if len(m.teams) >= maxDictionary {
		return events.IndexNone
	}
	m.teams = append(m.teams, t)
	return len(m.teams) - 1
}

func (m *Metadata) Player(i int) (PlayerInfo, bool) {
	if i < 0 || i >= len(m.players) {
		return PlayerInfo{}, false
	}
	return m.players[i], true
}

func (m *Metadata) Team(i int) (TeamInfo, bool) {
	if i < 0 || i >= len(m.teams) {
		return TeamInfo{}, false
	}
	return m.teams[i], true
}

func (m *Metadata) Players() []PlayerInfo {
	return m.players
}

func (m *Metadata) Teams() []TeamInfo {
	return m.teams
}

func (m *Metadata) NumPlayers() int {
	return len(m.players)
}

func (m *Metadata) NumTeams() int {
	return len(m.teams)
}

// AddSupportedEvent registers the description of an event ID, replacing an earlier one
func (m *Metadata) AddSupportedEvent(md events.MetaData) {
	for i := range m.SupportedEvents {
		if m.SupportedEvents[i].EventID == md.EventID {
			m.SupportedEvents[i] = md
			return
		}
	}
	m.SupportedEvents = append(m.SupportedEvents, md)
}

// EventMetaData looks up the description of an event ID
func (m *Metadata) EventMetaData(id events.EventID) (events.MetaData, bool) {
	for _, md := range m.SupportedEvents {
		if md.EventID == id {
			return md, true
		}
	}
	return events.MetaData{}, false
}

// EventName returns the friendly name of id, or its number when the file carries none
func (m *Metadata) EventName(id events.EventID) string {
	if md, ok := m.EventMetaData(id); ok && md.EventName != "" {
		return md.EventName
	}
	return formatEventID(id)
}

// Serialize reads or writes the footer. idsOnly selects the stripped SupportedEvents form.
func (m *Metadata) Serialize(ar *archive.Archive, idsOnly bool) {
	n := len(m.SupportedEvents)
	ar.Count(&n, maxDictionary)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		m.SupportedEvents = make([]events.MetaData, n)
	}
	for i := range m.SupportedEvents {
		m.SupportedEvents[i].Serialize(ar, idsOnly)
	}

	n = len(m.players)
	ar.Count(&n, maxDictionary)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		m.players = make([]PlayerInfo, n)
		m.playerIndex = make(map[string]int, n)
	}
	for i := range m.players {
		m.players[i].Serialize(ar)
		if ar.IsLoading() {
			if _, dup := m.playerIndex[m.players[i].ControllerName]; !dup {
				m.playerIndex[m.players[i].ControllerName] = i
			}
		}
	}

	n = len(m.teams)
	ar.Count(&n, maxDictionary)
	if ar.Err() != nil {
		return
	}
	if ar.IsLoading() {
		m.teams = make([]TeamInfo, n)
	}
	for i := range m.teams {
		m.teams[i].Serialize(ar)
	}

	m.WeaponClasses.Serialize(ar)
	m.DamageClasses.Serialize(ar)
	m.PawnClasses.Serialize(ar)
	m.ProjectileClasses.Serialize(ar)
	if ar.Has(archive.FeatureActorArray) {
		m.Actors.Serialize(ar)
	}
	if ar.Has(archive.FeatureSoundCueArray) {
		m.SoundCues.Serialize(ar)
	}
}

// CopyFrom replaces every dictionary with a copy of src's, keeping indices
func (m *Metadata) CopyFrom(src *Metadata) {
	m.SupportedEvents = append([]events.MetaData(nil), src.SupportedEvents...)
	m.players = append([]PlayerInfo(nil), src.players...)
	m.playerIndex = make(map[string]int, len(m.players))
	for i, p := range m.players {
		if _, dup := m.playerIndex[p.ControllerName]; !dup {
			m.playerIndex[p.ControllerName] = i
		}
	}
	m.teams = append([]TeamInfo(nil), src.teams...)
	m.WeaponClasses.copyFrom(&src.WeaponClasses)
	m.DamageClasses.copyFrom(&src.DamageClasses)
	m.PawnClasses.copyFrom(&src.PawnClasses)
	m.ProjectileClasses.copyFrom(&src.ProjectileClasses)
	m.Actors.copyFrom(&src.Actors)
	m.SoundCues.copyFrom(&src.SoundCues)
}

// Empty drops every dictionary entry
func (m *Metadata) Empty() {
	m.SupportedEvents = nil
	m.players = nil
	m.playerIndex = nil
	m.teams = nil
	m.WeaponClasses.empty()
	m.DamageClasses.empty()
	m.PawnClasses.empty()
	m.ProjectileClasses.empty()
	m.Actors.empty()
	m.SoundCues.empty()
}

func formatEventID(id events.EventID) string {
	return "Event" + strconv.Itoa(int(id))
}
