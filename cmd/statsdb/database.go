package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/api"
	"github.com/snowflk/statsdb/internal/gameplay/events"
	"github.com/snowflk/statsdb/internal/persistence"
	"github.com/snowflk/statsdb/internal/persistence/localdb"
	"github.com/urfave/cli/v2"
)

// withDatabase runs fn against the database configured by the command flags
func withDatabase(fn func(c *cli.Context, db *localdb.Database) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		db, err := openDatabase(c)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warnf("Failed to close database: %v", err)
			}
		}()
		return fn(c, db)
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "index stats files into the local database",
		ArgsUsage: "FILE...",
		Flags: append(databaseFlags(),
			&cli.BoolFlag{Name: "push", Usage: "push every imported session to the remote store"},
		),
		Action: withDatabase(func(c *cli.Context, db *localdb.Database) error {
			if c.NArg() == 0 {
				return errors.New("import: no files given")
			}
			for _, path := range c.Args().Slice() {
				key, err := db.AddFile(path)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, key)
				if c.Bool("push") {
					remote, err := db.Push(key)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, remote)
				}
			}
			return nil
		}),
	}
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "list indexed sessions",
		Flags: append(databaseFlags(),
			&cli.StringFlag{Name: "remote", Usage: "list remote sessions matching a pattern such as 'abc*'"},
		),
		Action: withDatabase(func(c *cli.Context, db *localdb.Database) error {
			if pattern := c.String("remote"); pattern != "" {
				keys, err := db.RemoteSessions(persistence.Pattern(pattern))
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Fprintln(c.App.Writer, key)
				}
				return nil
			}
			sessions, err := db.Sessions()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMAP\tDURATION\tEVENTS\tFILE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%.1fs\t%s\t%s\n",
					s.Key, s.MapName, s.EndTime-s.StartTime, humanize.Comma(int64(s.Events)), s.Path)
			}
			return w.Flush()
		}),
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "find events of one or more sessions",
		Flags: append(databaseFlags(),
			&cli.StringSliceFlag{Name: "session", Aliases: []string{"s"}, Usage: "local key or remote GUID:instance, repeatable"},
			&cli.IntSliceFlag{Name: "player", Aliases: []string{"p"}, Usage: "player index, -1 for every player"},
			&cli.IntSliceFlag{Name: "team", Aliases: []string{"t"}, Usage: "team index, -1 for every team"},
			&cli.IntSliceFlag{Name: "event", Aliases: []string{"e"}, Usage: "event ID"},
			&cli.IntSliceFlag{Name: "round", Usage: "round number"},
			&cli.Float64Flag{Name: "start", Usage: "earliest timestamp"},
			&cli.Float64Flag{Name: "end", Usage: "latest timestamp"},
			&cli.BoolFlag{Name: "count", Usage: "only print the number of matches per session"},
		),
		Action: withDatabase(func(c *cli.Context, db *localdb.Database) error {
			q := localdb.SearchQuery{
				SessionIDs:    c.StringSlice("session"),
				PlayerIndices: c.IntSlice("player"),
				TeamIndices:   c.IntSlice("team"),
				Rounds:        c.IntSlice("round"),
			}
			if len(q.SessionIDs) == 0 {
				return errors.New("query: at least one --session is required")
			}
			for _, id := range c.IntSlice("event") {
				q.EventIDs = append(q.EventIDs, events.EventID(id))
			}
			if c.IsSet("start") || c.IsSet("end") {
				q.Window = &localdb.TimeWindow{Start: float32(c.Float64("start")), End: float32(c.Float64("end"))}
				if !c.IsSet("end") {
					q.Window.End = float32(1 << 30)
				}
			}

			rs, err := db.Query(q)
			if err != nil {
				return err
			}
			if c.Bool("count") {
				for _, r := range rs.Results {
					fmt.Fprintf(c.App.Writer, "%s\t%d\n", r.SessionID, len(r.Events))
				}
				return nil
			}
			return db.VisitEntries(rs, localdb.VisitorFunc(func(e *localdb.Entry) error {
				_, err := fmt.Fprintf(c.App.Writer, "%s %6d %s\n", e.SessionID, e.Index, e.Describe())
				return err
			}))
		}),
	}
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "copy local sessions to the remote store",
		ArgsUsage: "KEY...",
		Flags:     databaseFlags(),
		Action: withDatabase(func(c *cli.Context, db *localdb.Database) error {
			if !db.HasRemote() {
				return localdb.ErrNoRemote
			}
			for _, key := range c.Args().Slice() {
				remote, err := db.Push(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s -> %s\n", key, remote)
			}
			return nil
		}),
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the database over HTTP",
		Flags: append(databaseFlags(),
			&cli.StringFlag{Name: "listen", Value: ":8080", EnvVars: []string{"STATSDB_LISTEN"}},
		),
		Action: withDatabase(func(c *cli.Context, db *localdb.Database) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.New(db).ListenAndServe(ctx, c.String("listen"))
		}),
	}
}
