package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/JonMunkholm/ledgersync/internal/backup"
	"github.com/JonMunkholm/ledgersync/internal/config"
	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/JonMunkholm/ledgersync/internal/logging"
	"github.com/JonMunkholm/ledgersync/internal/reader"
	"github.com/JonMunkholm/ledgersync/internal/store/postgres"
	"github.com/JonMunkholm/ledgersync/internal/store/sqlite"
	"github.com/joho/godotenv"
)

// app holds the components every command shares. The store is opened once
// and closed by Close on every exit path.
type app struct {
	cfg     *config.Config
	store   core.Store
	backups *backup.Manager
	service *core.Service
	sources reader.Files

	logCloser io.Closer
}

// loadEnv applies a .env file over the process environment. A missing
// default ./.env is fine; a missing --env-file is an error.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Overload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// openApp loads configuration, sets up logging and opens the store.
// logOut receives console logs; commands with machine-readable output
// pass stderr.
func openApp(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app, error) {
	if err := loadEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.Verbose {
		level = "debug"
	}
	logCloser := logging.Setup(logging.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		Output:     logOut,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	slog.Debug("configuration loaded", "config", cfg.String())

	a := &app{cfg: cfg, logCloser: logCloser}

	a.store, err = openStore(ctx, cfg)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	mirror, err := backup.NewMirror(backup.S3Options{
		Endpoint:  cfg.Backup.S3.Endpoint,
		Bucket:    cfg.Backup.S3.Bucket,
		AccessKey: cfg.Backup.S3.AccessKey,
		SecretKey: cfg.Backup.S3.SecretKey,
		UseSSL:    cfg.Backup.S3.UseSSL,
		Prefix:    cfg.Backup.S3.Prefix,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.backups, err = backup.New(cfg.Backup.Path, mirror)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = core.NewService(a.store, core.Options{
		Normalizer:     core.NewNormalizer(cfg.Sync.DateMarkers, cfg.Sync.AmountPrefixes),
		Keys:           core.NewKeySelector(cfg.Sync.KeyColumns, cfg.Sync.FallbackKeyColumns),
		Deny:           core.NewDenyList(cfg.Sync.SkipTables...),
		Backups:        a.backups,
		BackupRequired: cfg.Backup.Required,
		Retention:      cfg.Backup.Retention,
		StoreSnapshot:  cfg.Backup.StoreSnapshot,
		RunWait:        cfg.Sync.Timeout,
	})

	a.sources = reader.Files{
		Reader: reader.New(reader.Options{
			SkipSheets:     cfg.Reader.SkipSheets,
			HeaderMinCells: cfg.Reader.HeaderMinCells,
		}),
		Paths: cfg.Reader.SourceFiles,
	}
	return a, nil
}

// openStore opens PostgreSQL when DATABASE_URL is a postgres URL and a
// SQLite file otherwise.
func openStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if cfg.Database.IsPostgres() {
		s, err := postgres.Open(ctx, postgres.Options{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := sqlite.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the store and the log file.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// logOutput returns where a command's logs should go: stderr when the
// command prints machine-readable output, stdout otherwise.
func logOutput(opts *RootOptions) io.Writer {
	if opts.Format == "text" {
		return os.Stdout
	}
	return os.Stderr
}
