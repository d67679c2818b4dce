// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/syncgate/internal/config"
	"github.com/holomush/syncgate/pkg/errutil"
)

// mockMigrator implements Migrator for testing.
type mockMigrator struct {
	upCalled    bool
	upError     error
	downCalled  bool
	downError   error
	steps       *int
	stepsError  error
	applied     []uint
	forced      *int
	forceError  error
	version     uint
	dirty       bool
	versionErr  error
	pending     []uint
	pendingErr  error
	closeCalled bool
	closeError  error
}

func (m *mockMigrator) Up() error {
	m.upCalled = true
	return m.upError
}

func (m *mockMigrator) Down() error {
	m.downCalled = true
	return m.downError
}

func (m *mockMigrator) Steps(n int) error {
	m.steps = &n
	return m.stepsError
}

func (m *mockMigrator) AppliedMigrations() ([]uint, error) {
	return m.applied, nil
}

func (m *mockMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, m.versionErr
}

func (m *mockMigrator) Force(version int) error {
	m.forced = &version
	return m.forceError
}

func (m *mockMigrator) PendingMigrations() ([]uint, error) {
	return m.pending, m.pendingErr
}

func (m *mockMigrator) Close() error {
	m.closeCalled = true
	return m.closeError
}

func migrateDeps(m *mockMigrator) *MigrateDeps {
	return &MigrateDeps{
		MigratorFactory: func(*config.Config) (Migrator, error) { return m, nil },
	}
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "negative parses", input: "-1", wantVersion: -1},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantVersion, version)
			}
		})
	}
}

func TestMigrateUp(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{pending: []uint{1, 2}}

		out, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "up")
		require.NoError(t, err)
		assert.True(t, m.upCalled)
		assert.True(t, m.closeCalled)
		assert.Contains(t, out, "Applied 2 migration(s)")
	})

	t.Run("nothing pending skips up", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{}

		out, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "up")
		require.NoError(t, err)
		assert.False(t, m.upCalled)
		assert.Contains(t, out, "No pending migrations")
	})

	t.Run("up error is surfaced", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{pending: []uint{1}, upError: errors.New("boom")}

		_, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "up")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
		assert.True(t, m.closeCalled, "migrator must be closed on failure")
	})
}

func TestMigrateDown(t *testing.T) {
	t.Run("rolls back everything by default", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{}

		out, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "down")
		require.NoError(t, err)
		assert.True(t, m.downCalled)
		assert.Nil(t, m.steps)
		assert.Contains(t, out, "rolled back")
	})

	t.Run("steps rolls back that many", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{}

		out, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "down", "--steps", "2")
		require.NoError(t, err)
		assert.False(t, m.downCalled)
		require.NotNil(t, m.steps)
		assert.Equal(t, -2, *m.steps)
		assert.Contains(t, out, "Rolled back 2 migration(s)")
	})

	t.Run("negative steps rejected", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{}

		_, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "down", "--steps=-1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
		assert.Nil(t, m.steps)
	})

	t.Run("steps error is surfaced", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{stepsError: errors.New("boom")}

		_, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "down", "--steps", "1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
	})
}

func TestMigrateVersion(t *testing.T) {
	isolate(t)
	m := &mockMigrator{version: 3, dirty: true, applied: []uint{1, 2, 3}, pending: []uint{4}}

	out, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 3")
	assert.Contains(t, out, "dirty: true")
	assert.Contains(t, out, "applied: 1,2,3")
	assert.Contains(t, out, "pending: 1")
}

func TestFormatVersions(t *testing.T) {
	assert.Equal(t, "none", formatVersions(nil))
	assert.Equal(t, "7", formatVersions([]uint{7}))
	assert.Equal(t, "1,2", formatVersions([]uint{1, 2}))
}

func TestMigrateForce(t *testing.T) {
	t.Run("forces parsed version", func(t *testing.T) {
		isolate(t)
		m := &mockMigrator{}

		_, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "force", "2")
		require.NoError(t, err)
		require.NotNil(t, m.forced)
		assert.Equal(t, 2, *m.forced)
	})

	t.Run("invalid version never opens a migrator", func(t *testing.T) {
		isolate(t)
		opened := false
		deps := &MigrateDeps{MigratorFactory: func(*config.Config) (Migrator, error) {
			opened = true
			return &mockMigrator{}, nil
		}}

		_, err := execute(t, NewMigrateCmd(deps), "migrate", "force", "abc")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_VERSION")
		assert.False(t, opened)
	})
}

func TestMigrate_CloseErrorReported(t *testing.T) {
	isolate(t)
	m := &mockMigrator{closeError: errors.New("close failed")}

	_, err := execute(t, NewMigrateCmd(migrateDeps(m)), "migrate", "down")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
}

func TestMigrate_RedisBackendUnsupported(t *testing.T) {
	isolate(t)

	_, err := execute(t, NewMigrateCmd(nil), "migrate", "version", "--users-backend", "redis")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UNSUPPORTED")
}

func TestMigrate_SQLiteUsersBackend(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "users.db")

	_, err := execute(t, NewMigrateCmd(nil), "migrate", "up", "--users-db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, NewMigrateCmd(nil), "migrate", "version", "--users-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "dirty: false")
	assert.Contains(t, out, "pending: 0")
	assert.NotContains(t, out, "version: 0\n")
	assert.NotContains(t, out, "applied: none")

	out, err = execute(t, NewMigrateCmd(nil), "migrate", "down", "--steps", "1", "--users-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back 1 migration(s)")

	out, err = execute(t, NewMigrateCmd(nil), "migrate", "version", "--users-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "applied: none")
	assert.Contains(t, out, "pending: 1")
}

func TestRunAutoMigration(t *testing.T) {
	cfg := config.Defaults()

	tests := []struct {
		name       string
		migrator   *mockMigrator
		factoryErr error
		wantCode   string
	}{
		{name: "success", migrator: &mockMigrator{}},
		{name: "up failure", migrator: &mockMigrator{upError: errors.New("boom")}, wantCode: "AUTO_MIGRATION_FAILED"},
		{name: "close failure", migrator: &mockMigrator{closeError: errors.New("close")}, wantCode: "MIGRATION_CLOSE_FAILED"},
		{name: "factory failure", factoryErr: errors.New("no db"), wantCode: "MIGRATION_INIT_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runAutoMigration(&cfg, func(*config.Config) (Migrator, error) {
				if tt.factoryErr != nil {
					return nil, tt.factoryErr
				}
				return tt.migrator, nil
			})

			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			}
			if tt.migrator != nil {
				assert.True(t, tt.migrator.upCalled)
				assert.True(t, tt.migrator.closeCalled)
			}
		})
	}
}
