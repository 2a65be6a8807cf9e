// vroomd is the voice-chat server: it listens for framed TCP
// connections, places each client in the main channel, and routes
// control requests and audio fan-out between rooms.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rustyguts/vroom/internal/server"
	"github.com/rustyguts/vroom/internal/wire"
)

func main() {
	addr := pflag.StringP("addr", "a", ":7700", "TCP listen address")
	maxFrame := pflag.Uint32("max-frame", wire.DefaultMaxFrame, "maximum accepted frame size in bytes")
	metricsInterval := pflag.Duration("metrics-interval", 30*time.Second, "how often to log registry stats (0 disables)")
	debug := pflag.Bool("debug", false, "enable debug logging")
	help := pflag.Bool("help", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vroomd [options]\n\nOptions:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Str("component", "vroomd").Logger()

	ln, err := wire.Listen(*addr, *maxFrame, log)
	if err != nil {
		log.Error().Err(err).Str("addr", *addr).Msg("bind failed")
		os.Exit(1)
	}
	log.Info().Stringer("addr", ln.Addr()).Msg("listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Serve(ctx, ln)
	})
	if *metricsInterval > 0 {
		g.Go(func() error {
			server.RunMetrics(ctx, hub, *metricsInterval, log.With().Str("component", "metrics").Logger())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("shut down")
}
