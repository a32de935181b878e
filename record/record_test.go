package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/ppi/rx"
)

func TestRecorder_StoresReadings(t *testing.T) {
	recorder, err := Open(filepath.Join(t.TempDir(), "readings.db"), "replay:test.csv")
	require.NoError(t, err)
	defer recorder.Close()

	timestamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recorder.OnReading(rx.Reading{Seq: 1, Tick: 5, Timestamp: timestamp, Bearing: 1, Range: 1.3048})
	recorder.OnReading(rx.Reading{Seq: 2, Tick: 10, Timestamp: timestamp.Add(time.Second), Bearing: 2, Range: 2.5})

	readings, err := recorder.Readings(recorder.Session().ID)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 1, readings[0].Seq)
	assert.Equal(t, 5, readings[0].Tick)
	assert.True(t, timestamp.Equal(readings[0].Timestamp))
	assert.Equal(t, 1.3048, readings[0].Range)
	assert.Equal(t, 2, readings[1].Seq)
	assert.Equal(t, 2.0, readings[1].Bearing)
}

func TestRecorder_SessionsAreSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.db")

	first, err := Open(path, "first")
	require.NoError(t, err)
	first.OnReading(rx.Reading{Seq: 1})
	require.NoError(t, first.Close())

	second, err := Open(path, "second")
	require.NoError(t, err)
	defer second.Close()
	second.OnReading(rx.Reading{Seq: 1})
	second.OnReading(rx.Reading{Seq: 2})

	sessions, err := second.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "first", sessions[0].Source)
	assert.Equal(t, "second", sessions[1].Source)
	assert.NotEqual(t, sessions[0].ID, sessions[1].ID)

	readings, err := second.Readings(sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, readings, 1)

	readings, err = second.Readings(second.Session().ID)
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestRecorder_DuplicateReadingIsLogged(t *testing.T) {
	recorder, err := Open(filepath.Join(t.TempDir(), "readings.db"), "test")
	require.NoError(t, err)
	defer recorder.Close()

	recorder.OnReading(rx.Reading{Seq: 1, Range: 1})
	recorder.OnReading(rx.Reading{Seq: 1, Range: 2})

	readings, err := recorder.Readings(recorder.Session().ID)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 1.0, readings[0].Range)
}
