package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/snowflk/statsdb/internal/gameplay/aggregate"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/gameplay/gamestate"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
	"github.com/snowflk/statsdb/internal/persistence/localdb"
	"github.com/urfave/cli/v2"
)

func fileArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.Errorf("%s: missing stats file argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print the header, session and dictionaries of a stats file",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			st, err := os.Stat(path)
			if err != nil {
				return err
			}
			r := statsfile.NewReader(nil)
			if err := r.Open(path); err != nil {
				return err
			}
			defer r.Close()
			if err := r.ProcessStream(); err != nil {
				return err
			}

			h, s, m, stats := r.Header(), r.Session(), r.Metadata(), r.Stats()
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "File\t%s (%s)\n", path, humanize.Bytes(uint64(st.Size())))
			fmt.Fprintf(w, "Format\tv%d engine %d, %s\n", h.FormatVersion, h.EngineVersion, byteOrderName(r))
			fmt.Fprintf(w, "Session\t%s instance %d\n", s.GUID, s.SessionInstance)
			fmt.Fprintf(w, "Recorded\t%s on %s\n", s.Timestamp, s.Platform)
			fmt.Fprintf(w, "Map\t%s (%s)\n", s.MapName, s.GameClass)
			fmt.Fprintf(w, "Duration\t%.1fs\n", s.Duration())
			fmt.Fprintf(w, "Stream\t%s, %s records, %s dispatched, %s skipped\n",
				humanize.Bytes(uint64(h.TotalStreamSize)),
				humanize.Comma(int64(stats.Records)),
				humanize.Comma(int64(stats.Dispatched)),
				humanize.Comma(int64(stats.Unknown+stats.Desynced+stats.DecodeFails)))
			fmt.Fprintf(w, "Aggregates\t%t\n", h.AggregateOffset > 0)
			fmt.Fprintf(w, "Events\t%d described\n", len(m.SupportedEvents))
			fmt.Fprintf(w, "Players\t%s\n", playerNames(m))
			fmt.Fprintf(w, "Teams\t%s\n", teamNames(m))
			fmt.Fprintf(w, "Weapons\t%s\n", strings.Join(m.WeaponClasses.Names(), ", "))
			fmt.Fprintf(w, "Damage types\t%s\n", strings.Join(m.DamageClasses.Names(), ", "))
			fmt.Fprintf(w, "Pawns\t%s\n", strings.Join(m.PawnClasses.Names(), ", "))
			fmt.Fprintf(w, "Projectiles\t%s\n", strings.Join(m.ProjectileClasses.Names(), ", "))
			return w.Flush()
		},
	}
}

func byteOrderName(r *statsfile.Reader) string {
	if r.Order() == statsfile.OrderOf(true) {
		return "big endian"
	}
	return "little endian"
}

func playerNames(m *statsfile.Metadata) string {
	names := make([]string, 0, m.NumPlayers())
	for _, p := range m.Players() {
		name := p.PlayerName
		if p.IsBot {
			name += " (bot)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func teamNames(m *statsfile.Metadata) string {
	names := make([]string, 0, m.NumTeams())
	for _, t := range m.Teams() {
		names = append(names, t.TeamName)
	}
	return strings.Join(names, ", ")
}

// dumpPrinter writes one line per dispatched record
type dumpPrinter struct {
	out  io.Writer
	info statsfile.StreamInfo
}

func (d *dumpPrinter) PreProcessStream(info statsfile.StreamInfo) {
	d.info = info
}

func (d *dumpPrinter) HandleEvent(rec *statsfile.EventRecord, payload events.Payload) {
	e := localdb.Entry{
		SessionID: d.info.Session.GUID,
		Index:     rec.Index,
		Header:    rec.Header,
		Payload:   payload,
		Metadata:  d.info.Metadata,
	}
	fmt.Fprintf(d.out, "%6d %s\n", rec.Index, e.Describe())
}

func (d *dumpPrinter) PostProcessStream() {}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "print every event of a stats file",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			r := statsfile.NewReader(nil)
			if err := r.Open(path); err != nil {
				return err
			}
			defer r.Close()
			r.RegisterHandler(&dumpPrinter{out: c.App.Writer})
			return r.ProcessStream()
		},
	}
}

func ownerName(m *statsfile.Metadata, e aggregate.Entry) string {
	switch e.Scope {
	case aggregate.ScopeGame:
		return "-"
	case aggregate.ScopePlayer:
		if p, ok := m.Player(e.Owner); ok {
			return p.PlayerName
		}
	case aggregate.ScopeTeam:
		if t, ok := m.Team(e.Owner); ok {
			return t.TeamName
		}
	case aggregate.ScopeWeapon:
		return m.WeaponClasses.Name(e.Owner)
	case aggregate.ScopeDamage:
		return m.DamageClasses.Name(e.Owner)
	case aggregate.ScopeProjectile:
		return m.ProjectileClasses.Name(e.Owner)
	case aggregate.ScopePawn:
		return m.PawnClasses.Name(e.Owner)
	}
	return fmt.Sprintf("#%d", e.Owner)
}

func printReport(out io.Writer, m *statsfile.Metadata, entries []aggregate.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCOPE\tOWNER\tROUND\tAGGREGATE\tVALUE")
	for _, e := range entries {
		round := "game"
		if e.Period != aggregate.WholeGame {
			round = fmt.Sprint(e.Period)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Scope, ownerName(m, e), round, e.Name, humanize.Ftoa(e.Value))
	}
	return w.Flush()
}

func aggregateCommand() *cli.Command {
	return &cli.Command{
		Name:      "aggregate",
		Usage:     "compute the aggregate report of a stats file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "also write a copy of FILE with an aggregate section"},
			&cli.BoolFlag{Name: "stored", Usage: "print the aggregate section stored in FILE"},
		},
		Action: func(c *cli.Context) error {
			path, err := fileArg(c)
			if err != nil {
				return err
			}
			r := statsfile.NewReader(nil)
			if err := r.Open(path); err != nil {
				return err
			}
			defer r.Close()

			var entries []aggregate.Entry
			switch {
			case c.Bool("stored"):
				entries, err = aggregate.ReadAggregates(r)
			case c.String("out") != "":
				entries, err = aggregate.Annotate(path, c.String("out"), statsfile.WriterOptions{Order: r.Order()}, nil)
			default:
				tracker := gamestate.NewTracker()
				agg := aggregate.New(tracker, nil)
				r.RegisterHandler(tracker)
				r.RegisterHandler(agg)
				if err = r.ProcessStream(); err == nil {
					entries = agg.Report()
				}
			}
			if err != nil {
				return err
			}
			return printReport(c.App.Writer, r.Metadata(), entries)
		},
	}
}

func packCommand() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "compress a stats file with zstd",
		ArgsUsage: "FILE [DEST]",
		Action: func(c *cli.Context) error {
			src, err := fileArg(c)
			if err != nil {
				return err
			}
			dst := c.Args().Get(1)
			if dst == "" {
				dst = src + statsfile.PackedExtension
			}
			if err := statsfile.Pack(src, dst); err != nil {
				return err
			}
			return printSizes(c.App.Writer, src, dst)
		},
	}
}

func unpackCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpack",
		Usage:     "restore a packed stats file",
		ArgsUsage: "FILE [DEST]",
		Action: func(c *cli.Context) error {
			src, err := fileArg(c)
			if err != nil {
				return err
			}
			dst := c.Args().Get(1)
			if dst == "" {
				dst = strings.TrimSuffix(src, statsfile.PackedExtension)
			}
			if dst == src {
				return errors.Errorf("%s has no %s extension, give a destination", src, statsfile.PackedExtension)
			}
			if err := statsfile.Unpack(src, dst); err != nil {
				return err
			}
			return printSizes(c.App.Writer, src, dst)
		},
	}
}

func printSizes(out io.Writer, src, dst string) error {
	a, err := os.Stat(src)
	if err != nil {
		return err
	}
	b, err := os.Stat(dst)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s (%s) -> %s (%s)\n", src, humanize.Bytes(uint64(a.Size())), dst, humanize.Bytes(uint64(b.Size())))
	return err
}
