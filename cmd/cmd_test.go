package cmd

import (
	"bytes"
	"context"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ftl/ppi/config"
	"github.com/ftl/ppi/frame"
	"github.com/ftl/ppi/record"
)

func toneSamples(bin int) []float64 {
	size := frame.DefaultSize
	samples := make([]float64, size)
	for i := range samples {
		samples[i] = math.Round(10000 * math.Cos(2*math.Pi*float64(bin)*float64(i)/float64(size)))
	}
	frame.EncodeFooter(samples, frame.Footer{ValidCount: frame.PayloadSize(size)})
	return samples
}

func writeToneCapture(t *testing.T, bin int, rows int) string {
	t.Helper()
	size := frame.DefaultSize
	samples := toneSamples(bin)

	cells := make([]string, size)
	for i, v := range samples {
		cells[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	row := strings.Join(cells, ",") + "\n"

	filename := filepath.Join(t.TempDir(), "capture.csv")
	require.NoError(t, os.WriteFile(filename, []byte(strings.Repeat(row, rows)), 0o644))
	return filename
}

// writeToneWorkbook writes a workbook in the layout of the radar recordings: column names in the first row,
// row labels in the first column.
func writeToneWorkbook(t *testing.T, bin int, rows int) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	header := []any{""}
	for i := 0; i < frame.DefaultSize; i++ {
		header = append(header, i)
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))

	row := []any{0}
	for _, v := range toneSamples(bin) {
		row = append(row, v)
	}
	for i := 0; i < rows; i++ {
		row[0] = i
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	filename := filepath.Join(t.TempDir(), "dataradarspectr.xlsx")
	require.NoError(t, f.SaveAs(filename))
	return filename
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	saved := rootFlags
	t.Cleanup(func() { rootFlags = saved })

	path := filepath.Join(t.TempDir(), "ppi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("consensus_window: 7\nperiod: 2s\n"), 0o644))

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--window", "3"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.ConsensusWindow)
	assert.Equal(t, 2*time.Second, cfg.Period)
	assert.Equal(t, frame.DefaultSize, cfg.FrameSize)
}

func TestPipeline_Period(t *testing.T) {
	p := newPipeline(config.Default(), nil)
	assert.Equal(t, defaultReplayPeriod, p.period(defaultReplayPeriod))

	p.config.Period = 5 * time.Millisecond
	assert.Equal(t, 5*time.Millisecond, p.period(defaultReplayPeriod))
}

func TestPipeline_ReplayCapture(t *testing.T) {
	capture := writeToneCapture(t, 10, 10)
	database := filepath.Join(t.TempDir(), "readings.db")

	cfg := config.Default()
	source, err := openReplaySource(capture, false, cfg)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	p := newPipeline(cfg, out)
	p.recordTo = database

	err = p.run(context.Background(), source, "replay:test", time.Millisecond)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "reading 1: bearing "))
	assert.True(t, strings.HasSuffix(lines[0], "range 1.30m"))
	assert.True(t, strings.HasPrefix(lines[1], "reading 2: bearing "))

	recorder, err := record.Open(database, "check")
	require.NoError(t, err)
	defer recorder.Close()
	sessions, err := recorder.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "replay:test", sessions[0].Source)
	readings, err := recorder.Readings(sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, readings, 2)
}

func TestPipeline_ReplayWorkbook(t *testing.T) {
	capture := writeToneWorkbook(t, 10, 10)

	cfg := config.Default()
	source, err := openReplaySource(capture, false, cfg)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	p := newPipeline(cfg, out)

	err = p.run(context.Background(), source, "replay:workbook", time.Millisecond)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "range 1.30m"))
	assert.True(t, strings.HasSuffix(lines[1], "range 1.30m"))
}

func TestFatalIgnoresDisabledLogging(t *testing.T) {
	out := new(bytes.Buffer)
	exitCode := -1
	savedOutput, savedExit := fatalOutput, exit
	fatalOutput = out
	exit = func(code int) { exitCode = code }
	t.Cleanup(func() {
		fatalOutput, exit = savedOutput, savedExit
		log.SetOutput(os.Stderr)
	})
	log.SetOutput(&nopWriter{})

	fatalf("cannot open %s", "/dev/ttyACM0")

	assert.Contains(t, out.String(), "cannot open /dev/ttyACM0")
	assert.Equal(t, 1, exitCode)
}

func TestOpenReplaySource_Raw(t *testing.T) {
	cfg := config.Default()
	cfg.FrameSize = 8
	samples := []float64{1, 2, 3, 4, 0, 0, 4, 0}
	filename := filepath.Join(t.TempDir(), "capture.raw")
	require.NoError(t, os.WriteFile(filename, frame.EncodeInt16(samples), 0o644))

	source, err := openReplaySource(filename, true, cfg)
	require.NoError(t, err)

	f, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, 4, f.Footer.ValidCount)

	_, err = source.Next()
	assert.ErrorIs(t, err, frame.ErrEndOfStream)
}

func TestOpenReplaySource_Missing(t *testing.T) {
	_, err := openReplaySource(filepath.Join(t.TempDir(), "missing.csv"), false, config.Default())
	assert.Error(t, err)

	_, err = openReplaySource(filepath.Join(t.TempDir(), "missing.raw"), true, config.Default())
	assert.Error(t, err)
}
