package cmd

import (
	"context"

	"github.com/jfreymuth/pulse"
	"github.com/spf13/cobra"

	"github.com/ftl/ppi/frame"
)

var pulseFlags = struct {
	source string
	prf    float64
}{}

var pulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: "process frames from a Pulseaudio source",
	Long: `Process frames from a Pulseaudio source.

This is useful for radar front ends that deliver their IF signal through a sound card. The audio samples
are cut into frames of the configured size.`,
	Run: runWithCtx(runPulse),
}

func init() {
	rootCmd.AddCommand(pulseCmd)

	pulseCmd.Flags().StringVar(&pulseFlags.source, "source", "", "Pulseaudio source ID to use")
	pulseCmd.Flags().Float64Var(&pulseFlags.prf, "prf", 0, "pulse repetition frequency to put into the frame footer")
}

func runPulse(ctx context.Context, p *pipeline, cmd *cobra.Command, args []string) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("PPI"))
	if err != nil {
		fatal(err)
	}
	defer client.Close()

	var source *pulse.Source
	if pulseFlags.source == "" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(pulseFlags.source)
	}
	if err != nil {
		fatal(err)
	}

	assembler := frame.NewAudioAssembler(p.config.FrameSize, source.SampleRate(), pulseFlags.prf)
	defer assembler.Close()

	stream, err := client.NewRecord(pulse.Float32Writer(assembler.Write), pulse.RecordSource(source), pulse.RecordBufferFragmentSize(2*uint32(frame.PayloadSize(p.config.FrameSize))))
	if err != nil {
		fatal(err)
	}
	assembler.SetChannelCount(stream.Channels())

	stream.Start()
	defer stream.Stop()

	err = p.run(ctx, assembler, "pulse:"+source.ID(), defaultLivePeriod)
	if err != nil {
		fatal(err)
	}
}
