// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"
	"modernc.org/sqlite"
)

var registerPragmasOnce sync.Once

func registerPragmas() {
	registerPragmasOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			const initSQL = `
			pragma journal_mode = WAL;
			pragma synchronous = normal;
			pragma busy_timeout = 5000;
			pragma temp_store = memory;
			`
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})
}

// OpenSQLite opens the SQLite database at dbPath, creating the file and its
// parent directory if needed, and migrates it to the latest version of set.
// The returned handle is limited to a single connection.
func OpenSQLite(ctx context.Context, logger *slog.Logger, dbPath string, set Set) (*sql.DB, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return nil, oops.Code("SQLITE_PATH_INVALID").
			With("path", dbPath).
			Errorf("sqlite path must name a file")
	}
	if _, err := os.Stat(dbPath); err != nil {
		const userOnlyDirPerms = 0o700
		if err = os.MkdirAll(filepath.Dir(dbPath), userOnlyDirPerms); err != nil {
			return nil, oops.Code("SQLITE_OPEN_FAILED").
				With("operation", "create parent directory").
				With("path", dbPath).
				Wrap(err)
		}
	}

	registerPragmas()

	logger = logger.With(slog.String("db", dbPath), slog.String("set", string(set)))
	if err := migrateSQLite(logger, dbPath, set); err != nil {
		return nil, err
	}

	dsn := dbPath
	if strings.ContainsRune(dsn, '?') {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_time_format=sqlite"

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("operation", "open").With("path", dbPath).Wrap(err)
	}
	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, oops.Code("SQLITE_OPEN_FAILED").With("operation", "ping").With("path", dbPath).Wrap(err)
	}
	handle.SetMaxOpenConns(1)

	logger.DebugContext(ctx, "sqlite database ready")
	return handle, nil
}

func migrateSQLite(logger *slog.Logger, dbPath string, set Set) (err error) {
	migrator, err := NewSQLiteMigrator(set, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	if err := migrator.Up(); err != nil {
		return err
	}
	logger.Info("applied migrations", "versions", pending)
	return nil
}
