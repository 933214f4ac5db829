package statsfile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/snowflk/statsdb/internal/gameplay/archive"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	rec     EventRecord
	payload events.Payload
}

type collector struct {
	info    StreamInfo
	records []recorded
	started int
	ended   int
}

func (c *collector) PreProcessStream(info StreamInfo) {
	c.info = info
	c.started++
}

func (c *collector) HandleEvent(rec *EventRecord, payload events.Payload) {
	c.records = append(c.records, recorded{rec: *rec, payload: payload})
}

func (c *collector) PostProcessStream() {
	c.ended++
}

func testSession() SessionInfo {
	return SessionInfo{
		AppTitleID:      0x4d5707d2,
		GUID:            "6f9619ff-8b86-d011-b42d-00cf4fc964ff",
		Timestamp:       "2026.10.17-12.00.00",
		StartTime:       10,
		Platform:        PlatformWindows,
		Language:        "INT",
		GameClass:       "UTGame.UTDeathmatch",
		MapName:         "DM-Deck",
		MapURL:          "DM-Deck?Game=UTGame.UTDeathmatch",
		SessionInstance: 2,
		OwningNetID:     "76561197960287930",
		GameTypeID:      3,
		PlaylistID:      12,
		Multiplayer:     true,
	}
}

// writeSample writes two players, a kill and a round marker
func writeSample(t *testing.T, path string, opts WriterOptions) SessionInfo {
	t.Helper()
	w := NewWriter(opts)
	session := testSession()
	require.NoError(t, w.Open(path, session))
	meta := w.Metadata()
	p0 := meta.ResolvePlayerIndex(PlayerInfo{ControllerName: "PC_0", PlayerName: "Malcolm"})
	p1 := meta.ResolvePlayerIndex(PlayerInfo{ControllerName: "PC_1", PlayerName: "Othello", IsBot: true})
	red := meta.ResolveTeamIndex(TeamInfo{TeamIndex: 0, TeamName: "Red", TeamColor: 0xff0000ff, MaxSize: 8})
	rocket := meta.DamageClasses.Resolve("UTDmgType_Rocket")
	pawn := meta.PawnClasses.Resolve("UTPawn")

	rot := events.Rotator{Pitch: -32768, Yaw: 32767, Roll: 0}
	require.NoError(t, w.RecordEvent(events.EventRoundStarted, 1, &events.GameIntEvent{Value: 1}))
	require.NoError(t, w.RecordEvent(events.EventPlayerLogin, 1.5, &events.PlayerLoginEvent{
		Player: events.NewPlayerState(p0, rot, events.Vector{}), SplitScreen: true}))
	require.NoError(t, w.RecordEvent(events.EventPlayerSpawn, 2, &events.PlayerSpawnEvent{
		Player: events.NewPlayerState(p1, rot, events.Vector{X: 1}), PawnClass: int32(pawn), Team: int32(red)}))
	require.NoError(t, w.RecordEvent(events.EventPlayerKill, 3, &events.PlayerKillDeathEvent{
		Player:      events.NewPlayerState(p0, rot, events.Vector{X: 5, Y: 6, Z: 7}),
		Target:      events.NewPlayerState(p1, events.Rotator{}, events.Vector{}),
		DamageClass: int32(rocket),
		KillType:    4,
	}))
	require.NoError(t, w.RecordEvent(events.EventGameString, 3.5, &events.GameStringEvent{Value: "Überflag"}))
	require.NoError(t, w.Close(20))
	assert.False(t, w.IsOpen())
	session.EndTime = 20
	return session
}

func readAll(t *testing.T, path string, registry *events.Registry) (*Reader, *collector) {
	t.Helper()
	r := NewReader(registry)
	require.NoError(t, r.Open(path))
	c := &collector{}
	r.RegisterHandler(c)
	require.NoError(t, r.ProcessStream())
	return r, c
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match"+Extension)
	session := writeSample(t, path, WriterOptions{})

	r, c := readAll(t, path, nil)
	defer r.Close()

	assert.Equal(t, session, *r.Session())
	assert.Equal(t, float32(10), r.SessionDuration())
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), r.Order())
	assert.False(t, r.Header().HasFlag(FlagIncomplete))
	assert.Equal(t, 1, c.started)
	assert.Equal(t, 1, c.ended)
	assert.Same(t, r.Metadata(), c.info.Metadata)

	require.Len(t, c.records, 5)
	ids := []events.EventID{events.EventRoundStarted, events.EventPlayerLogin, events.EventPlayerSpawn, events.EventPlayerKill, events.EventGameString}
	for i, want := range ids {
		assert.Equal(t, want, c.records[i].rec.Header.EventID)
		assert.Equal(t, i, c.records[i].rec.Index)
	}
	kill := c.records[3].payload.(*events.PlayerKillDeathEvent)
	assert.Equal(t, 0, kill.PlayerIndex())
	assert.Equal(t, 1, kill.TargetIndex())
	assert.Equal(t, int32(4), kill.KillType)
	assert.Equal(t, events.Rotator{Pitch: -32768, Yaw: 32767}, kill.Player.Rotation())
	assert.Equal(t, "UTDmgType_Rocket", r.Metadata().DamageClasses.Name(int(kill.DamageClass)))
	assert.Equal(t, float32(3), c.records[3].rec.Header.TimeStamp)
	assert.Equal(t, "Überflag", c.records[4].payload.(*events.GameStringEvent).Value)

	p1, ok := r.Metadata().Player(1)
	require.True(t, ok)
	assert.Equal(t, "Othello", p1.PlayerName)
	assert.True(t, p1.IsBot)
	_, ok = r.Metadata().Player(2)
	assert.False(t, ok)
	assert.Equal(t, "PlayerKill", r.Metadata().EventName(events.EventPlayerKill))
	assert.Equal(t, 5, r.Stats().Dispatched)
}

func TestWriter_OlderVersions(t *testing.T) {
	for _, version := range []int32{archive.MinVersion, 6, 10, archive.LatestVersion} {
		path := filepath.Join(t.TempDir(), "old"+Extension)
		writeSample(t, path, WriterOptions{Version: version})

		r, c := readAll(t, path, nil)
		assert.Equal(t, version, r.Header().FormatVersion)
		require.Len(t, c.records, 5, "version %d", version)

		login := c.records[1].payload.(*events.PlayerLoginEvent)
		kill := c.records[3].payload.(*events.PlayerKillDeathEvent)
		session := r.Session()
		if archive.SupportsFeature(version, archive.FeatureKillType) {
			assert.Equal(t, int32(4), kill.KillType)
		} else {
			assert.Equal(t, int32(0), kill.KillType)
		}
		assert.Equal(t, archive.SupportsFeature(version, archive.FeatureSplitScreenLogin), login.SplitScreen)
		assert.Equal(t, archive.SupportsFeature(version, archive.FeatureSessionType), session.Multiplayer)
		if archive.SupportsFeature(version, archive.FeatureSessionInstance) {
			assert.Equal(t, int32(2), session.SessionInstance)
		} else {
			assert.Equal(t, int32(0), session.SessionInstance)
		}
		if !archive.SupportsFeature(version, archive.FeatureGameTypeAndPlaylist) {
			assert.Zero(t, session.PlaylistID)
		}
		// dictionaries survive every version
		assert.Equal(t, 2, r.Metadata().NumPlayers())
		assert.Equal(t, "UTPawn", r.Metadata().PawnClasses.Name(0))
		require.NoError(t, r.Close())
	}
}

func TestReader_CrossEndian(t *testing.T) {
	dir := t.TempDir()
	little := filepath.Join(dir, "le"+Extension)
	big := filepath.Join(dir, "be"+Extension)
	writeSample(t, little, WriterOptions{Order: binary.LittleEndian})
	writeSample(t, big, WriterOptions{Order: binary.BigEndian})

	lr, lc := readAll(t, little, nil)
	defer lr.Close()
	br, bc := readAll(t, big, nil)
	defer br.Close()

	assert.Equal(t, binary.ByteOrder(binary.BigEndian), br.Order())
	assert.Equal(t, *lr.Session(), *br.Session())
	assert.Equal(t, lr.Metadata().Players(), br.Metadata().Players())
	require.Len(t, bc.records, len(lc.records))
	for i := range lc.records {
		assert.Equal(t, lc.records[i].rec, bc.records[i].rec)
		assert.Equal(t, lc.records[i].payload, bc.records[i].payload)
	}
}

type flagEvent struct {
	Holder int32
	Team   int32
}

const typeFlag = events.MaxEngineType + 7

func (e *flagEvent) Type() events.EventType    { return typeFlag }
func (e *flagEvent) Size(*archive.Archive) int { return 8 }
func (e *flagEvent) Serialize(ar *archive.Archive) {
	ar.Int32(&e.Holder)
	ar.Int32(&e.Team)
}

// shortFlagEvent decodes the flag shape but stops after the first field
type shortFlagEvent struct {
	Holder int32
}

func (e *shortFlagEvent) Type() events.EventType        { return typeFlag }
func (e *shortFlagEvent) Size(*archive.Archive) int     { return 4 }
func (e *shortFlagEvent) Serialize(ar *archive.Archive) { ar.Int32(&e.Holder) }

func writeWithFlag(t *testing.T, path string) {
	t.Helper()
	registry := events.DefaultRegistry()
	require.NoError(t, registry.Register("Flag", typeFlag, func() events.Payload { return &flagEvent{} }))
	w := NewWriter(WriterOptions{Registry: registry})
	require.NoError(t, w.Open(path, testSession()))
	require.NoError(t, w.RecordEvent(events.EventRoundStarted, 1, &events.GameIntEvent{Value: 1}))
	require.NoError(t, w.RecordEvent(1500, 2, &flagEvent{Holder: 3, Team: 1}))
	require.NoError(t, w.RecordEvent(events.EventRoundEnded, 3, &events.GameIntEvent{Value: 1}))
	require.NoError(t, w.Close(4))
}

func TestReader_SkipsUnknownTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flag"+Extension)
	writeWithFlag(t, path)

	r, c := readAll(t, path, nil)
	defer r.Close()
	require.Len(t, c.records, 2)
	assert.Equal(t, events.EventRoundStarted, c.records[0].rec.Header.EventID)
	assert.Equal(t, events.EventRoundEnded, c.records[1].rec.Header.EventID)
	assert.Equal(t, 2, c.records[1].rec.Index)
	assert.Equal(t, int32(1), c.records[1].payload.(*events.GameIntEvent).Value)

	stats := r.Stats()
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 1, stats.Unknown)
	last := c.records[1].rec
	assert.Equal(t, int64(r.Header().StreamOffset+r.Header().TotalStreamSize),
		last.Offset+events.RecordHeaderSize+int64(last.Header.DataSize))
}

func TestReader_DropsDesynchronizedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desync"+Extension)
	writeWithFlag(t, path)

	registry := events.DefaultRegistry()
	require.NoError(t, registry.Register("Flag", typeFlag, func() events.Payload { return &shortFlagEvent{} }))
	r, c := readAll(t, path, registry)
	defer r.Close()

	require.Len(t, c.records, 2)
	assert.Equal(t, events.EventRoundEnded, c.records[1].rec.Header.EventID)
	assert.Equal(t, 1, r.Stats().Desynced)
}

func TestReader_RejectsIncompleteFile(t *testing.T) {
	for _, version := range []int32{10, archive.LatestVersion} {
		path := filepath.Join(t.TempDir(), "crash"+Extension)
		w := NewWriter(WriterOptions{Version: version})
		require.NoError(t, w.Open(path, testSession()))
		require.NoError(t, w.RecordEvent(events.EventMatchStarted, 0, &events.GameStringEvent{Value: "DM-Deck"}))
		require.NoError(t, w.Abandon())

		r := NewReader(nil)
		err := r.Open(path)
		require.Error(t, err)
		if archive.SupportsFeature(version, archive.FeatureHeaderFlags) {
			assert.ErrorIs(t, err, ErrIncomplete)
		} else {
			assert.ErrorIs(t, err, ErrBadOffsets)
		}
		assert.False(t, r.IsOpen())
	}
}

func TestReader_RejectsSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grown"+Extension)
	writeSample(t, path, WriterOptions{})
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte{0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = NewReader(nil).Open(path)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestReader_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage"+Extension)
	require.NoError(t, os.WriteFile(path, []byte("definitely not a stats file"), 0o644))
	err := NewReader(nil).Open(path)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestWriter_StateMachine(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(WriterOptions{})
	assert.ErrorIs(t, w.RecordEvent(events.EventMatchStarted, 0, &events.GameIntEvent{}), ErrNotOpen)
	assert.ErrorIs(t, w.Close(0), ErrNotOpen)

	first := filepath.Join(dir, "first"+Extension)
	second := filepath.Join(dir, "second"+Extension)
	require.NoError(t, w.Open(first, testSession()))
	require.NoError(t, w.Open(second, testSession()))
	assert.Equal(t, first, w.Path())
	_, err := os.Stat(second)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, w.Close(1))
	assert.Zero(t, w.Metadata().NumPlayers())
}

// lyingEvent declares fewer bytes than it serializes
type lyingEvent struct {
	Value int32
}

func (e *lyingEvent) Type() events.EventType        { return typeFlag }
func (e *lyingEvent) Size(*archive.Archive) int     { return 2 }
func (e *lyingEvent) Serialize(ar *archive.Archive) { ar.Int32(&e.Value) }

func TestWriter_DropsMisframedRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lying"+Extension)
	w := NewWriter(WriterOptions{})
	require.NoError(t, w.Open(path, testSession()))
	require.NoError(t, w.RecordEvent(events.EventMatchStarted, 0, &events.GameStringEvent{Value: "DM-Deck"}))
	assert.ErrorIs(t, w.RecordEvent(1500, 1, &lyingEvent{Value: 7}), ErrDesync)
	for round := int32(1); round <= 3; round++ {
		require.NoError(t, w.RecordEvent(events.EventRoundStarted, float32(round), &events.GameIntEvent{Value: round}))
	}
	require.NoError(t, w.Close(4))

	r, c := readAll(t, path, nil)
	defer r.Close()
	require.Len(t, c.records, 4)
	assert.Equal(t, events.EventMatchStarted, c.records[0].rec.Header.EventID)
	for i, rec := range c.records[1:] {
		assert.Equal(t, events.EventRoundStarted, rec.rec.Header.EventID)
		assert.Equal(t, int32(i+1), rec.payload.(*events.GameIntEvent).Value)
	}
	stats := r.Stats()
	assert.Equal(t, 4, stats.Records)
	assert.Zero(t, stats.Unknown)
	assert.Zero(t, stats.Desynced)
}

func TestWriter_PayloadTooLarge(t *testing.T) {
	w := NewWriter(WriterOptions{})
	require.NoError(t, w.Open(filepath.Join(t.TempDir(), "big"+Extension), testSession()))
	defer w.Close(0)
	locations := &events.PlayerLocationsEvent{Players: make([]events.PlayerState, 4000)}
	assert.ErrorIs(t, w.RecordEvent(events.EventPlayerLocationPoll, 1, locations), ErrPayloadTooLarge)
}

func TestWriter_StrippedEventNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stripped"+Extension)
	writeSample(t, path, WriterOptions{StripEventNames: true, FilterClass: "UTStatsFilter"})
	r, c := readAll(t, path, nil)
	defer r.Close()

	assert.True(t, r.Header().HasFlag(FlagNoEventStrings))
	assert.Equal(t, "UTStatsFilter", r.Header().FilterClass)
	assert.Len(t, c.records, 5)
	md, ok := r.Metadata().EventMetaData(events.EventPlayerKill)
	require.True(t, ok)
	assert.Empty(t, md.EventName)
	assert.Equal(t, events.TypePlayerKillDeath, md.DataType)
	assert.Equal(t, "Event1030", r.Metadata().EventName(events.EventPlayerKill))

	w := NewWriter(WriterOptions{StripEventNames: true, Version: 10})
	assert.Error(t, w.Open(filepath.Join(t.TempDir(), "x"+Extension), testSession()))
	assert.False(t, w.IsOpen())
}

func TestAggregateSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agg"+Extension)
	w := NewWriter(WriterOptions{})
	require.NoError(t, w.Open(path, testSession()))
	require.NoError(t, w.RecordEvent(events.EventMatchStarted, 0, &events.GameStringEvent{Value: "DM-Deck"}))
	require.NoError(t, w.BeginAggregates())
	assert.ErrorIs(t, w.BeginAggregates(), ErrSectionState)
	kills, err := events.NewKeyedAggregate(events.TypePlayerAggregate)
	require.NoError(t, err)
	kills.Owner, kills.TimePeriod, kills.Value = 0, 1, 3
	require.NoError(t, w.RecordEvent(events.EventID(events.AggregatePlayerKills), 0, kills))
	require.NoError(t, w.RecordEvent(events.EventID(events.AggregateRoundsStarted), 0, &events.GameAggregateEvent{Value: 2}))
	require.NoError(t, w.Close(5))

	r, c := readAll(t, path, nil)
	defer r.Close()
	require.Len(t, c.records, 1)
	assert.True(t, r.Header().HasAggregates())

	var aggregates []events.Payload
	require.NoError(t, r.VisitAggregates(func(rec *EventRecord, p events.Payload) {
		aggregates = append(aggregates, p)
	}))
	require.Len(t, aggregates, 2)
	assert.Equal(t, kills, aggregates[0])
	assert.Equal(t, float32(2), aggregates[1].(*events.GameAggregateEvent).Value)

	w = NewWriter(WriterOptions{Version: 9})
	require.NoError(t, w.Open(filepath.Join(t.TempDir(), "v9"+Extension), testSession()))
	assert.ErrorIs(t, w.BeginAggregates(), ErrBadVersion)
	require.NoError(t, w.Close(0))
}

func TestReader_ReadEventAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "random"+Extension)
	writeSample(t, path, WriterOptions{})
	r, c := readAll(t, path, nil)
	defer r.Close()

	want := c.records[3]
	rec, payload, err := r.ReadEventAt(want.rec.Offset)
	require.NoError(t, err)
	assert.Equal(t, want.rec.Header, rec.Header)
	assert.Equal(t, want.payload, payload)

	_, _, err = r.ReadEventAt(int64(r.Header().FooterOffset))
	assert.ErrorIs(t, err, ErrBadOffsets)
}

func TestPackedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match"+Extension)
	writeSample(t, path, WriterOptions{})
	packed := path + PackedExtension
	require.NoError(t, Pack(path, packed))

	plain, pc := readAll(t, path, nil)
	defer plain.Close()
	zr, zc := readAll(t, packed, nil)
	defer zr.Close()
	assert.Equal(t, *plain.Session(), *zr.Session())
	require.Len(t, zc.records, len(pc.records))
	for i := range pc.records {
		assert.Equal(t, pc.records[i].payload, zc.records[i].payload)
	}

	restored := filepath.Join(dir, "restored"+Extension)
	require.NoError(t, Unpack(packed, restored))
	a, err := os.ReadFile(path)
	require.NoError(t, err)
	b, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSessionKey(t *testing.T) {
	s := testSession()
	guid, instance, ok, err := ParseSessionKey(s.Key())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, s.GUID, guid)
	assert.Equal(t, int32(2), instance)

	_, _, ok, err = ParseSessionKey("local-session")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = ParseSessionKey("abc:x")
	assert.Error(t, err)
}

func TestBlobs(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		path := filepath.Join(t.TempDir(), "match"+Extension)
		session := writeSample(t, path, WriterOptions{Order: order})
		r, c := readAll(t, path, nil)
		version := r.Header().FormatVersion

		info, err := EncodeSession(session, version, order)
		require.NoError(t, err)
		decoded, err := DecodeSession(info, version, order)
		require.NoError(t, err)
		assert.Equal(t, session, decoded)

		blob, err := EncodeMetadata(r.Metadata(), version, order)
		require.NoError(t, err)
		meta, err := DecodeMetadata(blob, version, order)
		require.NoError(t, err)
		assert.Equal(t, r.Metadata().Players(), meta.Players())
		assert.Equal(t, r.Metadata().Teams(), meta.Teams())
		assert.Equal(t, []string{"UTDmgType_Rocket"}, meta.DamageClasses.Names())
		assert.Equal(t, "PlayerKill", meta.EventName(events.EventPlayerKill))

		kill := c.records[3].payload
		payload, err := EncodePayload(kill, version, order)
		require.NoError(t, err)
		assert.Len(t, payload, int(c.records[3].rec.Header.DataSize))
		back, err := DecodePayload(events.DefaultRegistry(), kill.Type(), payload, version, order)
		require.NoError(t, err)
		assert.Equal(t, kill, back)

		_, err = DecodePayload(events.DefaultRegistry(), kill.Type(), append(payload, 0), version, order)
		assert.ErrorIs(t, err, ErrDesync)
		_, err = DecodePayload(events.DefaultRegistry(), events.EventType(200), payload, version, order)
		assert.ErrorIs(t, err, ErrUnknownEvent)
		require.NoError(t, r.Close())
	}
	_, _, _, err := ParseSessionKey("abc:x")
	assert.ErrorIs(t, err, ErrBadSessionKey)
}
