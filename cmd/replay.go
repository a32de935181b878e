package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftl/ppi/config"
	"github.com/ftl/ppi/frame"
)

const defaultReplayPeriod = time.Second

var replayFlags = struct {
	raw         bool
	header      bool
	indexColumn bool
	comma       string
	sheet       string
}{}

var replayCmd = &cobra.Command{
	Use:   "replay <filename>",
	Short: "process the frames of a recorded capture",
	Long: `Process the frames of a recorded capture.

Captures ending in .xlsx or .xlsm are Excel workbooks with one frame per row. The first row holds column
names and the first column holds row labels, unless configured otherwise. Other captures are CSV tables
with one frame per row. With --raw, the capture is a binary stream of little-endian int16 samples, one
frame after another.`,
	Args: cobra.ExactArgs(1),
	Run:  runWithCtx(runReplay),
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayFlags.raw, "raw", false, "the capture is a binary stream of int16 samples")
	replayCmd.Flags().BoolVar(&replayFlags.header, "header", false, "the first row of the table contains column names")
	replayCmd.Flags().BoolVar(&replayFlags.indexColumn, "index-column", false, "the first column of the table contains row labels")
	replayCmd.Flags().StringVar(&replayFlags.comma, "comma", ",", "the field separator of a CSV table")
	replayCmd.Flags().StringVar(&replayFlags.sheet, "sheet", "", "the sheet of a workbook (default: the first sheet)")
}

func runReplay(ctx context.Context, p *pipeline, cmd *cobra.Command, args []string) {
	flags := cmd.Flags()
	if flags.Changed("header") {
		p.config.Table.Header = replayFlags.header
		p.config.Workbook.Header = replayFlags.header
	}
	if flags.Changed("index-column") {
		p.config.Table.IndexColumn = replayFlags.indexColumn
		p.config.Workbook.IndexColumn = replayFlags.indexColumn
	}
	if flags.Changed("comma") {
		p.config.Table.Comma = replayFlags.comma
	}
	if flags.Changed("sheet") {
		p.config.Workbook.Sheet = replayFlags.sheet
	}

	source, err := openReplaySource(args[0], replayFlags.raw, p.config)
	if err != nil {
		fatal(err)
	}

	err = p.run(ctx, source, "replay:"+args[0], defaultReplayPeriod)
	if err != nil {
		fatal(err)
	}
}

func openReplaySource(filename string, raw bool, cfg config.Config) (frame.Source, error) {
	if raw {
		file, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("cannot open capture: %w", err)
		}
		return frame.NewRecordingSource(file, cfg.FrameSize), nil
	}

	var table frame.Table
	var err error
	if frame.IsWorkbook(filename) {
		table, err = frame.LoadXLSXFile(filename, cfg.Workbook.Sheet, cfg.Workbook.Layout())
	} else {
		table, err = frame.LoadCSVFile(filename, cfg.Table.CSVOptions())
	}
	if err != nil {
		return nil, err
	}
	return frame.NewTableSource(table, cfg.FrameSize), nil
}
