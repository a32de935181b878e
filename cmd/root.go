package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ftl/ppi/config"
	"github.com/ftl/ppi/feed"
	"github.com/ftl/ppi/scope"
)

var (
	version   string = "develop"
	gitCommit string = "-"
	buildTime string = "-"
)

var rootFlags = struct {
	pprof        bool
	debug        bool
	scope        bool
	scopeAddress string
	feedAddress  string
	record       string
	config       string

	frameSize        int
	window           int
	period           time.Duration
	traceContext     string
	traceDestination string
}{}

var rootCmd = &cobra.Command{
	Use:   "ppi",
	Short: "PPI - turn radar frames into range readings",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootFlags.pprof, "pprof", false, "enable pprof")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&rootFlags.scope, "scope", false, "enable the scope server for insights into the inner workings")
	rootCmd.PersistentFlags().StringVar(&rootFlags.scopeAddress, "scope-address", ":35369", "listening address for the scope server")
	rootCmd.PersistentFlags().StringVar(&rootFlags.feedAddress, "feed-address", "", "listening address for the TCP reading feed (empty = no feed)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.record, "record", "", "record the readings into the given SQLite database")
	rootCmd.PersistentFlags().StringVar(&rootFlags.config, "config", "", "load the pipeline settings from the given YAML file")

	rootCmd.PersistentFlags().IntVar(&rootFlags.frameSize, "frame-size", 0, "number of values per frame, including the footer")
	rootCmd.PersistentFlags().IntVar(&rootFlags.window, "window", 0, "number of estimates per reading")
	rootCmd.PersistentFlags().DurationVar(&rootFlags.period, "period", 0, "tick period (0 = the default of the source)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.traceContext, "trace", "", "trace the given context: spectrum or range")
	rootCmd.PersistentFlags().StringVar(&rootFlags.traceDestination, "trace-to", "", "trace destination: file:<filename> or udp:<host:port>")

	rootCmd.PersistentFlags().MarkHidden("pprof")
	rootCmd.PersistentFlags().MarkHidden("trace")
	rootCmd.PersistentFlags().MarkHidden("trace-to")
}

func runWithCtx(f func(ctx context.Context, p *pipeline, cmd *cobra.Command, args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if !rootFlags.debug {
			log.SetOutput(&nopWriter{})
		}

		log.Printf("PPI Version %s", formatVersion())

		cfg, err := loadConfig(cmd)
		if err != nil {
			fatal(err)
		}
		p := newPipeline(cfg, os.Stdout)
		p.recordTo = rootFlags.record

		if rootFlags.pprof {
			go func() {
				log.Printf("starting pprof on http://localhost:6060/debug/pprof")
				log.Println(http.ListenAndServe("localhost:6060", nil))
			}()
		}

		if rootFlags.scope {
			scopeServer := scope.NewServer(rootFlags.scopeAddress, scope.StreamID(uuid.NewString()))
			err := scopeServer.Start()
			if err != nil {
				fatalf("cannot start scope server: %v", err)
			}
			defer scopeServer.Stop()
			p.spectrumHandler = scopeServer
			p.readingHandlers = append(p.readingHandlers, scopeServer)
		}

		if rootFlags.feedAddress != "" {
			feedServer, err := feed.NewServer(rootFlags.feedAddress, formatVersion())
			if err != nil {
				fatalf("cannot start feed server: %v", err)
			}
			defer feedServer.Stop()
			p.readingHandlers = append(p.readingHandlers, feedServer)
		}

		ctx, cancel := context.WithCancel(context.Background())
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go handleCancelation(signals, cancel)

		f(ctx, p, cmd, args)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if rootFlags.config != "" {
		var err error
		cfg, err = config.Load(rootFlags.config)
		if err != nil {
			return config.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("frame-size") {
		cfg.FrameSize = rootFlags.frameSize
	}
	if flags.Changed("window") {
		cfg.ConsensusWindow = rootFlags.window
	}
	if flags.Changed("period") {
		cfg.Period = rootFlags.period
	}
	if flags.Changed("trace") {
		cfg.Trace.Context = rootFlags.traceContext
	}
	if flags.Changed("trace-to") {
		cfg.Trace.Destination = rootFlags.traceDestination
	}

	return cfg, cfg.Validate()
}

func formatVersion() string {
	if gitCommit == "-" && buildTime == "-" {
		return version
	}
	return fmt.Sprintf("%s_%s_%s", version, gitCommit, buildTime)
}

func handleCancelation(signals <-chan os.Signal, cancel context.CancelFunc) {
	count := 0
	for range signals {
		count++
		if count == 1 {
			cancel()
		} else {
			log.Fatal("hard shutdown")
		}
	}
}

var (
	fatalOutput io.Writer = os.Stderr
	exit                  = os.Exit
)

// fatal reports the error on stderr, even if debug logging is disabled, and exits.
func fatal(v ...any) {
	log.SetOutput(fatalOutput)
	log.Print(v...)
	exit(1)
}

func fatalf(format string, v ...any) {
	fatal(fmt.Sprintf(format, v...))
}

type nopWriter struct{}

func (w *nopWriter) Write(p []byte) (n int, err error) { return len(p), nil }
