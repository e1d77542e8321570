package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dkeye/meetsync/internal/domain"
)

var ErrUnknownCommand = errors.New("unknown command")

// Exec runs one line of the interactive device console against a.
func Exec(a *Agent, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "mute":
		return a.ToggleMute()
	case "video":
		return a.ToggleVideo()
	case "join":
		if len(fields) < 2 {
			return fmt.Errorf("%w: join <meeting-id> [url]", domain.ErrBadPayload)
		}
		url := ""
		if len(fields) > 2 {
			url = fields[2]
		}
		return a.Join(domain.MeetingID(fields[1]), url, "")
	case "create":
		return a.Create(rest)
	case "leave":
		return a.Leave()
	case "layout":
		if rest == "" {
			return fmt.Errorf("%w: layout <name>", domain.ErrBadPayload)
		}
		return a.SetLayout(rest)
	case "brightness":
		if len(fields) != 2 {
			return fmt.Errorf("%w: brightness <0..1>", domain.ErrBadPayload)
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrBadPayload, err)
		}
		return a.SetBrightness(v)
	case "gesture":
		return a.Gesture(rawOrString(rest))
	case "notify":
		return a.Notify(rawOrString(rest))
	case "sync":
		return a.Sync()
	case "whoami":
		return a.WhoAmI()
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
}

// rawOrString passes JSON through and wraps anything else as a JSON string.
func rawOrString(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
