package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ftl/ppi/frame"
)

const defaultLivePeriod = time.Millisecond

var serialFlags = struct {
	port string
	baud int
}{}

var serialCmd = &cobra.Command{
	Use:   "serial",
	Short: "process the frames of a radar board connected to a serial port",
	Run:   runWithCtx(runSerial),
}

func init() {
	rootCmd.AddCommand(serialCmd)

	serialCmd.Flags().StringVar(&serialFlags.port, "port", "", "the serial port of the radar board")
	serialCmd.Flags().IntVar(&serialFlags.baud, "baud", frame.DefaultBaudRate, "the baud rate of the serial port")
}

func runSerial(ctx context.Context, p *pipeline, cmd *cobra.Command, args []string) {
	if cmd.Flags().Changed("port") {
		p.config.Serial.Port = serialFlags.port
	}
	if cmd.Flags().Changed("baud") {
		p.config.Serial.BaudRate = serialFlags.baud
	}
	if p.config.Serial.Port == "" {
		fatal("no serial port given, use --port")
	}

	source, err := frame.OpenSerial(p.config.Serial.Port, p.config.Serial.PortOptions, p.config.FrameSize)
	if err != nil {
		fatal(err)
	}

	err = p.run(ctx, source, "serial:"+p.config.Serial.Port, defaultLivePeriod)
	if err != nil {
		fatal(err)
	}
}
