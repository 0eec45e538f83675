// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

package store

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasktrail/tasktrail/pkg/errutil"
)

type fakeRunner struct {
	upErr      error
	downErr    error
	stepsErr   error
	steps      []int
	version    uint
	dirty      bool
	versionErr error
	forceErr   error
	forced     []int
	srcErr     error
	dbErr      error
}

func (f *fakeRunner) Up() error   { return f.upErr }
func (f *fakeRunner) Down() error { return f.downErr }
func (f *fakeRunner) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.stepsErr
}
func (f *fakeRunner) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeRunner) Force(v int) error {
	f.forced = append(f.forced, v)
	return f.forceErr
}
func (f *fakeRunner) Close() (error, error) { return f.srcErr, f.dbErr }

func newTestMigrator(r *fakeRunner) (*Migrator, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Migrator{m: r, logger: slog.New(slog.NewJSONHandler(&buf, nil))}, &buf
}

func TestMigratorURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@h:5432/db":   "pgx5://u:p@h:5432/db",
		"postgresql://u:p@h:5432/db": "pgx5://u:p@h:5432/db",
		"pgx5://u:p@h:5432/db":       "pgx5://u:p@h:5432/db",
		"mysql://h/db":               "mysql://h/db",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigratorURL(in), in)
	}
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/testdb", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestNewMigrator_PostgresqlSchemeIsRecognized(t *testing.T) {
	_, err := NewMigrator("postgresql://localhost:1/testdb?connect_timeout=1", nil)
	require.Error(t, err, "nothing listens on port 1")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestMigrator_UpDown(t *testing.T) {
	tests := []struct {
		name     string
		runner   *fakeRunner
		call     func(*Migrator) error
		wantCode string
	}{
		{"up", &fakeRunner{version: 2}, (*Migrator).Up, ""},
		{"up no change", &fakeRunner{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up failure", &fakeRunner{upErr: errors.New("database locked")}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", &fakeRunner{}, (*Migrator).Down, ""},
		{"down no change", &fakeRunner{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down failure", &fakeRunner{downErr: errors.New("constraint violation")}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMigrator(tt.runner)
			err := tt.call(m)
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_UpLogsVersion(t *testing.T) {
	m, logs := newTestMigrator(&fakeRunner{version: 2})
	require.NoError(t, m.Up())
	assert.Contains(t, logs.String(), `"msg":"migrations applied"`)
	assert.Contains(t, logs.String(), `"version":2`)
}

func TestMigrator_Steps(t *testing.T) {
	t.Run("zero is a no-op", func(t *testing.T) {
		r := &fakeRunner{}
		m, _ := newTestMigrator(r)
		require.NoError(t, m.Steps(0))
		assert.Empty(t, r.steps)
	})

	t.Run("passes count through", func(t *testing.T) {
		r := &fakeRunner{}
		m, _ := newTestMigrator(r)
		require.NoError(t, m.Steps(-1))
		assert.Equal(t, []int{-1}, r.steps)
	})

	t.Run("no change is success", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{stepsErr: migrate.ErrNoChange})
		require.NoError(t, m.Steps(1))
	})

	t.Run("failure", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{stepsErr: errors.New("file does not exist")})
		err := m.Steps(5)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_STEPS_FAILED")
		errutil.AssertErrorContext(t, err, "steps", 5)
	})
}

func TestMigrator_Version(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{version: 2, dirty: true})
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("fresh database", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{versionErr: migrate.ErrNilVersion})
		v, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{versionErr: errors.New("connection lost")})
		_, _, err := m.Version()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	t.Run("records version", func(t *testing.T) {
		r := &fakeRunner{}
		m, logs := newTestMigrator(r)
		require.NoError(t, m.Force(1))
		assert.Equal(t, []int{1}, r.forced)
		assert.Contains(t, logs.String(), "migration version forced")
	})

	t.Run("rejects negative version", func(t *testing.T) {
		r := &fakeRunner{}
		m, _ := newTestMigrator(r)
		err := m.Force(-1)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_VERSION")
		assert.Empty(t, r.forced)
	})

	t.Run("failure", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{forceErr: errors.New("locked")})
		err := m.Force(2)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_FORCE_FAILED")
	})
}

func TestMigrator_Status(t *testing.T) {
	tests := []struct {
		name        string
		version     uint
		wantName    string
		wantPending []uint
	}{
		{"fresh", 0, "", []uint{1}},
		{"latest", 1, "000001_create_users", nil},
		{"ahead of embedded set", 7, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMigrator(&fakeRunner{version: tt.version})
			st, err := m.Status()
			require.NoError(t, err)
			assert.Equal(t, tt.version, st.Version)
			assert.Equal(t, tt.wantName, st.Name)
			assert.Equal(t, tt.wantPending, st.Pending)
		})
	}

	t.Run("version failure", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{versionErr: errors.New("connection lost")})
		_, err := m.Status()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name          string
		srcErr, dbErr error
		wantComponent string
	}{
		{"source", errors.New("src"), nil, "source"},
		{"database", nil, errors.New("db"), "database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMigrator(&fakeRunner{srcErr: tt.srcErr, dbErr: tt.dbErr})
			err := m.Close()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.wantComponent)
		})
	}

	t.Run("both", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{srcErr: errors.New("src"), dbErr: errors.New("db")})
		err := m.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source: src; database: db")
	})

	t.Run("clean", func(t *testing.T) {
		m, _ := newTestMigrator(&fakeRunner{})
		require.NoError(t, m.Close())
	})
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		version uint
		want    string
	}{
		{1, "000001_create_users"},
		{2, ""},
		{999, ""},
	}
	for _, tt := range tests {
		name, err := MigrationName(tt.version)
		require.NoError(t, err)
		assert.Equal(t, tt.want, name)
	}
}

func TestEmbeddedVersions_ReturnsCopy(t *testing.T) {
	first, err := embeddedVersions()
	require.NoError(t, err)
	require.Equal(t, []uint{1}, first)

	first[0] = 99999

	second, err := embeddedVersions()
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}
