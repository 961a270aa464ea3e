package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSink_SendAndRecent(t *testing.T) {
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLSinkFromDSN(dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	now := time.Now().UTC().Truncate(time.Second)
	events := []Event{
		{Type: EventLaunch, OccurredAt: now, Generation: 0, PID: 100, Command: "./build-and-run.sh"},
		{Type: EventExit, OccurredAt: now.Add(time.Second), Generation: 1, PID: 100, ExitCode: -1, Signal: "terminated"},
		{Type: EventLaunch, OccurredAt: now.Add(2 * time.Second), Generation: 1, PID: 101, Command: "./build-and-run.sh"},
	}
	for _, e := range events {
		require.NoError(t, s.Send(ctx, e))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, EventLaunch, got[0].Type)
	assert.Equal(t, 101, got[0].PID)
	assert.Equal(t, uint64(1), got[0].Generation)
	assert.Equal(t, EventExit, got[1].Type)
	assert.Equal(t, "terminated", got[1].Signal)
	assert.True(t, got[1].OccurredAt.Equal(now.Add(time.Second)))
}

func TestSQLiteSink_ReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "h.db")
	s, err := NewSQLSinkFromDSN(path)
	require.NoError(t, err)
	require.NoError(t, s.Send(ctx, Event{Type: EventLaunchFailed, OccurredAt: time.Now(), Generation: 3, Error: "boom"}))
	require.NoError(t, s.Close())

	s, err = NewSQLSinkFromDSN(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0].Error)
}

func TestNewSQLSinkFromDSN_Empty(t *testing.T) {
	_, err := NewSQLSinkFromDSN("  ")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLSink{dialect: "postgres"}
	assert.Equal(t, "VALUES($1, $2)", pg.rebind("VALUES(?, ?)"))
	lite := &SQLSink{dialect: "sqlite"}
	assert.Equal(t, "VALUES(?, ?)", lite.rebind("VALUES(?, ?)"))
}
