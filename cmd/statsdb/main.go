package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/snowflk/statsdb/internal/persistence/localdb"
	"github.com/snowflk/statsdb/internal/persistence/sqlstorage"
	"github.com/urfave/cli/v2"
)

const (
	flagDataDir        = "data-dir"
	flagRemoteDriver   = "remote-driver"
	flagRemoteHost     = "remote-host"
	flagRemotePort     = "remote-port"
	flagRemoteUser     = "remote-user"
	flagRemotePassword = "remote-password"
	flagRemoteDatabase = "remote-database"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "statsdb",
		Usage: "record, inspect and index gameplay stats files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON"},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			infoCommand(),
			dumpCommand(),
			aggregateCommand(),
			packCommand(),
			unpackCommand(),
			importCommand(),
			sessionsCommand(),
			queryCommand(),
			pushCommand(),
			serveCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(c *cli.Context) error {
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.Bool("log-json") {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}

// databaseFlags configure the local database and the optional remote store
func databaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagDataDir, Value: "statsdb-data", EnvVars: []string{"STATSDB_DATA_DIR"}, Usage: "local database directory"},
		&cli.StringFlag{Name: flagRemoteDriver, EnvVars: []string{"STATSDB_REMOTE_DRIVER"}, Usage: "postgres, mysql or sqlite, empty disables the remote store"},
		&cli.StringFlag{Name: flagRemoteHost, Value: "localhost", EnvVars: []string{"STATSDB_REMOTE_HOST"}},
		&cli.IntFlag{Name: flagRemotePort, EnvVars: []string{"STATSDB_REMOTE_PORT"}},
		&cli.StringFlag{Name: flagRemoteUser, EnvVars: []string{"STATSDB_REMOTE_USER"}},
		&cli.StringFlag{Name: flagRemotePassword, EnvVars: []string{"STATSDB_REMOTE_PASSWORD"}},
		&cli.StringFlag{Name: flagRemoteDatabase, Value: "statsdb", EnvVars: []string{"STATSDB_REMOTE_DATABASE"}, Usage: "database name, or file path for sqlite"},
	}
}

func openDatabase(c *cli.Context) (*localdb.Database, error) {
	opts := localdb.Options{Dir: c.String(flagDataDir)}
	if driver := c.String(flagRemoteDriver); driver != "" {
		remote, err := sqlstorage.New(sqlstorage.Options{
			Driver:   driver,
			Host:     c.String(flagRemoteHost),
			Port:     c.Int(flagRemotePort),
			User:     c.String(flagRemoteUser),
			Password: c.String(flagRemotePassword),
			Database: c.String(flagRemoteDatabase),
		})
		if err != nil {
			return nil, err
		}
		opts.Remote = remote
	}
	db, err := localdb.Open(opts)
	if err != nil && opts.Remote != nil {
		_ = opts.Remote.Close()
	}
	return db, err
}
