// vroom is the interactive voice-chat client: it connects to a server,
// streams microphone audio to the current room, plays back peers, and
// exposes a small REPL for room control.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/rustyguts/vroom/internal/audio"
	"github.com/rustyguts/vroom/internal/client"
)

func main() {
	gain := pflag.Float64("gain", 1.0, "output gain (0.0-1.0)")
	inputGain := pflag.Float64("input-gain", 1.0, "input gain (0.0-1.0)")
	mute := pflag.Bool("mute", false, "start muted")
	nullAudio := pflag.Bool("null-audio", false, "use the silent null audio device instead of hardware")
	debug := pflag.Bool("debug", false, "enable debug logging")
	help := pflag.Bool("help", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vroom [options] <user_id> <host> <port>\n\nOptions:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		return
	}
	args := pflag.Args()
	if len(args) != 3 {
		pflag.Usage()
		os.Exit(1)
	}
	userID, host, port := args[0], args[1], args[2]

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Str("component", "vroom").Logger()

	ctx := context.Background()
	c, err := client.Dial(ctx, fmt.Sprintf("%s:%s", host, port), userID, log)
	if err != nil {
		log.Error().Err(err).Msg("connect failed")
		os.Exit(1)
	}
	defer c.Close()

	engine, subsystem := buildEngine(*nullAudio, c, log)
	if subsystem != nil {
		defer subsystem.Close()
	}
	engine.SetInputGain(*inputGain)
	engine.SetOutputGain(*gain)
	if *mute {
		c.SetMuted(true)
		engine.SetMuted(true)
	}
	if err := engine.Start(); err != nil {
		log.Warn().Err(err).Msg("hardware audio unavailable, falling back to null device")
		engine = audio.NewEngine(audio.NewNullCapture(), audio.NewNullPlayback(), audio.OpusCodec{}, c.SendAudio, log)
		engine.SetInputGain(*inputGain)
		engine.SetOutputGain(*gain)
		engine.SetMuted(*mute)
		if err := engine.Start(); err != nil {
			log.Error().Err(err).Msg("audio start failed")
			os.Exit(1)
		}
	}
	defer engine.Stop()

	if *mute {
		if _, err := c.Mute(ctx); err != nil {
			log.Warn().Err(err).Msg("server-side mute failed")
		}
	}

	// Route inbound frames to the decoder, skipping our own echoes.
	go func() {
		for frame := range c.AudioFrames() {
			if frame.UserID == userID {
				continue
			}
			engine.HandleIncoming(frame.UserID, frame.AudioPayload)
		}
	}()

	// Surface unsolicited server messages (the welcome banner).
	go func() {
		for resp := range c.Unsolicited() {
			fmt.Printf("server: %s\n", resp.Message)
		}
	}()

	repl(ctx, c, engine)
}

// buildEngine picks the audio backend: hardware by default, the null
// devices when requested or when PortAudio fails to come up.
func buildEngine(forceNull bool, c *client.Client, log zerolog.Logger) (*audio.Engine, *audio.Subsystem) {
	if forceNull {
		return audio.NewEngine(audio.NewNullCapture(), audio.NewNullPlayback(), audio.OpusCodec{}, c.SendAudio, log), nil
	}
	subsystem, err := audio.NewSubsystem(log)
	if err != nil {
		log.Warn().Err(err).Msg("audio subsystem unavailable, using null device")
		return audio.NewEngine(audio.NewNullCapture(), audio.NewNullPlayback(), audio.OpusCodec{}, c.SendAudio, log), nil
	}
	capture, _ := subsystem.OpenCapture()
	playback, _ := subsystem.OpenPlayback()
	return audio.NewEngine(capture, playback, audio.OpusCodec{}, c.SendAudio, log), subsystem
}

const helpText = `commands:
  join <room>   move to a room (creates it if needed)
  leave         return to the main channel
  rooms         list rooms and their members
  mute          stop sending microphone audio
  unmute        resume sending microphone audio
  help          show this text
  quit          disconnect and exit`

func repl(ctx context.Context, c *client.Client, engine *audio.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("connected. type 'help' for commands.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "join":
			if len(fields) != 2 {
				fmt.Println("usage: join <room>")
				continue
			}
			runRequest(ctx, func(ctx context.Context) (string, error) {
				return c.Join(ctx, fields[1])
			})
		case "leave":
			runRequest(ctx, c.Leave)
		case "rooms":
			runRequest(ctx, func(ctx context.Context) (string, error) {
				listing, err := c.ListRooms(ctx)
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, room := range client.ParseListing(listing) {
					fmt.Fprintf(&b, "%s (%d): %s\n", room.ID, len(room.Members), strings.Join(room.Members, ", "))
				}
				return strings.TrimSuffix(b.String(), "\n"), nil
			})
		case "mute":
			engine.SetMuted(true)
			runRequest(ctx, c.Mute)
		case "unmute":
			engine.SetMuted(false)
			runRequest(ctx, c.Unmute)
		case "help":
			fmt.Println(helpText)
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q, type 'help'\n", fields[0])
		}
	}
}

func runRequest(ctx context.Context, do func(context.Context) (string, error)) {
	msg, err := do(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println(msg)
}
