package socketio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

// Notification actions sent back from a now-playing notification.
const (
	actionPlay     = "play"
	actionPause    = "pause"
	actionNext     = "next"
	actionPrevious = "prev"
)

// commands returns the client command handlers keyed by event name.
func (s *Server) commands() map[string]func(args ...any) {
	return map[string]func(args ...any){
		"play": func(args ...any) {
			var req struct {
				Track *track.Track `json:"track"`
			}
			if len(args) > 0 {
				if err := decodeArg(args[0], &req); err != nil {
					log.Warn().Err(err).Msg("Invalid play payload")
					return
				}
			}
			s.run("play", func(ctx context.Context) error {
				return s.player.Play(ctx, req.Track)
			})
		},

		"pause": func(args ...any) {
			logErr("pause", s.player.Pause())
		},

		"stop": func(args ...any) {
			logErr("stop", s.player.Stop())
		},

		"next": func(args ...any) {
			s.run("next", s.player.NextTrack)
		},

		"prev": func(args ...any) {
			s.run("prev", s.player.PreviousTrack)
		},

		"seek": func(args ...any) {
			if pos, ok := argFloat(args); ok {
				logErr("seek", s.player.Seek(pos))
			}
		},

		"volume": func(args ...any) {
			if v, ok := argFloat(args); ok {
				logErr("volume", s.player.SetVolume(v))
			}
		},

		"mute": func(args ...any) {
			logErr("mute", s.player.ToggleMute())
		},

		"setRate": func(args ...any) {
			if r, ok := argFloat(args); ok {
				logErr("setRate", s.player.SetPlaybackRate(r))
			}
		},

		"setQueue": func(args ...any) {
			var req struct {
				Tracks     []track.Track `json:"tracks"`
				StartIndex int           `json:"startIndex"`
			}
			if len(args) == 0 {
				return
			}
			if err := decodeArg(args[0], &req); err != nil {
				log.Warn().Err(err).Msg("Invalid setQueue payload")
				return
			}
			s.run("setQueue", func(ctx context.Context) error {
				return s.player.SetQueueAndPlay(ctx, req.Tracks, req.StartIndex)
			})
		},

		"setRandom": func(args ...any) {
			if on, ok := argBool(args, "value"); ok {
				s.player.SetShuffleMode(on)
			}
		},

		"toggleRandom": func(args ...any) {
			s.player.ToggleShuffle()
		},

		"setRepeat": func(args ...any) {
			raw, _ := argString(args, "value")
			m, err := player.ParseRepeatMode(raw)
			if err != nil {
				log.Warn().Err(err).Msg("Invalid repeat mode")
				return
			}
			s.player.SetRepeatMode(m)
		},

		"cycleRepeat": func(args ...any) {
			m := s.player.CycleRepeat()
			log.Debug().Str("repeat", string(m)).Msg("Repeat mode cycled")
		},

		"like": func(args ...any) {
			if id, ok := argString(args, "trackId"); ok && s.likes != nil {
				s.likes.Like(id)
			}
		},

		"unlike": func(args ...any) {
			if id, ok := argString(args, "trackId"); ok && s.likes != nil {
				s.likes.Unlike(id)
			}
		},

		"refreshCatalog": func(args ...any) {
			s.run("refreshCatalog", s.player.RefreshCatalog)
		},

		"notificationPermission": func(args ...any) {
			raw, _ := argString(args, "permission")
			p := ParsePermission(raw)
			if !s.bridge.Answer(p) {
				s.player.SetNotificationPermission(p)
			}
		},

		"notificationAction": func(args ...any) {
			action, _ := argString(args, "action")
			s.handleNotificationAction(action)
		},
	}
}

func (s *Server) handleNotificationAction(action string) {
	switch action {
	case actionPlay:
		s.run("notificationAction", func(ctx context.Context) error {
			return s.player.Play(ctx, nil)
		})
	case actionPause:
		logErr("notificationAction", s.player.Pause())
	case actionNext:
		s.run("notificationAction", s.player.NextTrack)
	case actionPrevious:
		s.run("notificationAction", s.player.PreviousTrack)
	default:
		log.Warn().Str("action", action).Msg("Unknown notification action")
	}
}

// run executes a command that may wait on the engine without blocking the socket.
func (s *Server) run(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
		defer cancel()
		logErr(name, fn(ctx))
	}()
}

func logErr(cmd string, err error) {
	if err != nil {
		log.Error().Err(err).Str("cmd", cmd).Msg("Command failed")
	}
}

// decodeArg converts a decoded socket payload into v.
func decodeArg(arg any, v any) error {
	data, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// argFloat reads a bare number or {"value": number}.
func argFloat(args []any) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case map[string]interface{}:
		f, ok := v["value"].(float64)
		return f, ok
	}
	return 0, false
}

// argBool reads a bare bool or a bool field.
func argBool(args []any, key string) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	switch v := args[0].(type) {
	case bool:
		return v, true
	case map[string]interface{}:
		b, ok := v[key].(bool)
		return b, ok
	}
	return false, false
}

// argString reads a bare string or a string field.
func argString(args []any, key string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	switch v := args[0].(type) {
	case string:
		return v, true
	case map[string]interface{}:
		str, ok := v[key].(string)
		return str, ok
	}
	return "", false
}
