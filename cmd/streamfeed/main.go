// Command streamfeed runs the activity stream feed server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/uktrade/directory-api-sub000/internal/api"
	"github.com/uktrade/directory-api-sub000/internal/config"
	"github.com/uktrade/directory-api-sub000/internal/nonce"
	"github.com/uktrade/directory-api-sub000/internal/store"
	"github.com/uktrade/directory-api-sub000/internal/util"
)

// Default configuration constants.
const (
	// DefaultStateDir is the default directory for feed service state data.
	DefaultStateDir = "/var/lib/streamfeed"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "streamfeed.db"
	// DefaultNonceDirName is the default Badger nonce store directory.
	DefaultNonceDirName = "nonces"
	// DefaultGCInterval is how often the nonce store value log is compacted.
	DefaultGCInterval = 5 * time.Minute
)

// Config holds environment configuration.
type Config struct {
	DbDriver        string
	DatabaseURL     string
	StateDir        string
	CredentialsFile string
	APIAddr         string
	PageSize        int
}

func main() {
	initializeLogger()

	cfg := loadEnvironmentConfig()
	flags := parseCommandLineFlags(cfg)

	if err := run(flags); err != nil {
		slog.Error("streamfeed failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("streamfeed exited successfully")
}

// initializeLogger sets up structured logging. STREAMFEED_DEBUG=true lowers
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("STREAMFEED_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
	return Config{
		DbDriver:        os.Getenv("STREAMFEED_DB_DRIVER"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("STREAMFEED_STATE_DIR"),
		CredentialsFile: os.Getenv("STREAMFEED_CREDENTIALS_FILE"),
		APIAddr:         os.Getenv("STREAMFEED_API_ADDR"),
		PageSize:        util.ParseIntEnv("STREAMFEED_PAGE_SIZE", 0),
	}
}

// Flags holds command line flag values. Flags override environment values.
type Flags struct {
	dbDriver  *string
	dbDSN     *string
	stateDir  *string
	credsFile *string
	apiAddr   *string
	pageSize  *int
}

func parseCommandLineFlags(cfg Config) Flags {
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = api.DefaultAddr
	}
	if cfg.DbDriver == "" {
		cfg.DbDriver = "sqlite3"
	}
	flags := Flags{
		dbDriver:  flag.String("db-driver", cfg.DbDriver, "database driver: sqlite3 or postgres"),
		dbDSN:     flag.String("db-dsn", cfg.DatabaseURL, "database DSN (file path for sqlite3, URL for postgres)"),
		stateDir:  flag.String("state-dir", cfg.StateDir, "directory for service state (SQLite DB, nonce store)"),
		credsFile: flag.String("credentials", cfg.CredentialsFile, "path to the YAML credential file"),
		apiAddr:   flag.String("addr", cfg.APIAddr, "API listen address"),
		pageSize:  flag.Int("page-size", cfg.PageSize, "feed page size (0 = maximum)"),
	}
	flag.Parse()
	return flags
}

func run(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, store.DefaultDirPermissions); err != nil {
		return err
	}

	creds, err := config.LoadCredentials(*flags.credsFile)
	if err != nil {
		return err
	}

	var st store.Store
	switch *flags.dbDriver {
	case "postgres":
		st, err = store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	default:
		dsn := *flags.dbDSN
		if dsn == "" {
			dsn = *flags.stateDir + "/" + DefaultDBFileName
		}
		st, err = store.NewSQLiteStore(store.WithDSN(dsn))
	}
	if err != nil {
		return err
	}
	defer st.Close()

	guard, err := nonce.NewBadgerGuard(*flags.stateDir+"/"+DefaultNonceDirName, nonce.DefaultTTL)
	if err != nil {
		return err
	}
	defer guard.Close()

	srv, err := api.NewServer(
		api.WithAddr(*flags.apiAddr),
		api.WithPageSize(*flags.pageSize),
		api.WithCredentials(creds),
		api.WithStore(st),
		api.WithGuard(guard),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(DefaultGCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				guard.RunGC()
			}
		}
	})
	return g.Wait()
}
