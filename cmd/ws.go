package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ftl/ppi/frame"
)

var wsFlags = struct {
	url string
}{}

var wsCmd = &cobra.Command{
	Use:   "ws",
	Short: "process the frames of a radar board that streams over a websocket",
	Long: `Process the frames of a radar board that streams over a websocket.

Every binary message contains the little-endian int16 samples of one frame.`,
	Run: runWithCtx(runWebSocket),
}

func init() {
	rootCmd.AddCommand(wsCmd)

	wsCmd.Flags().StringVar(&wsFlags.url, "url", "", "the websocket URL of the radar board (ws:// or wss://)")
	wsCmd.MarkFlagRequired("url")
}

func runWebSocket(ctx context.Context, p *pipeline, cmd *cobra.Command, args []string) {
	source, err := frame.DialWebSocket(wsFlags.url, p.config.FrameSize)
	if err != nil {
		fatal(err)
	}

	err = p.run(ctx, source, "ws:"+wsFlags.url, defaultLivePeriod)
	if err != nil {
		fatal(err)
	}
}
