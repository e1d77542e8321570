package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/meetsync/internal/agent"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		url    string
		kind   string
		cookie string
		debug  bool
	)
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Simulated wearable connected to a meetsync server",
		Long: `device connects to the signal endpoint as glasses, wrist or ring and reads
commands from stdin:

  mute | video | join <id> [url] | create [title] | leave
  layout <name> | brightness <0..1> | gesture <data> | notify <data>
  sync | whoami`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			k, err := domain.ParseDeviceKind(kind)
			if err != nil {
				return fmt.Errorf("--kind %q: %w", kind, err)
			}
			return run(cmd.Context(), url, k, cookie)
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/api/ws/signal", "signal endpoint")
	cmd.Flags().StringVar(&kind, "kind", "glasses", "device kind: glasses, wrist or ring")
	cmd.Flags().StringVar(&cookie, "cookie", "", "session cookie, e.g. MeetSyncSession=...")
	cmd.Flags().BoolVar(&debug, "debug", false, "log every state change")
	return cmd
}

func run(parent context.Context, url string, kind domain.DeviceKind, cookie string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	conn, err := agent.Dial(ctx, url, kind, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	a := agent.New(kind, conn)
	a.OnChange(func(s agent.State) {
		ev := log.Debug().Str("sid", string(s.SessionID)).
			Bool("muted", s.Muted).Bool("videoOff", s.VideoOff).
			Float64("brightness", s.Brightness).Str("layout", s.Layout).
			Int("devices", len(s.Devices))
		if s.Meeting != nil {
			ev = ev.Str("meeting", string(s.Meeting.ID)).Int("participants", len(s.Meeting.Participants))
		}
		ev.Msg("state")
	})
	a.OnEvent(func(e agent.Event) {
		if e.Type == core.EventError {
			var p core.ErrorPayload
			_ = json.Unmarshal(e.Payload, &p)
			log.Warn().Str("kind", p.Kind).Msg(p.Message)
			return
		}
		log.Info().Str("event", e.Type).RawJSON("payload", orNull(e.Payload)).Msg("received")
	})

	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx, a) }()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	log.Info().Str("kind", string(kind)).Str("url", url).Msg("connected")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := agent.Exec(a, line); err != nil {
				log.Error().Err(err).Msg("command failed")
			}
		}
	}
}

func orNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
