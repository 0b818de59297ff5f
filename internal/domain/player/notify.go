package player

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ensureNotificationPermission asks for permission once per engine lifetime.
func (e *Engine) ensureNotificationPermission() {
	e.mu.Lock()
	if e.notifier == nil || e.permissionRequested || e.closed {
		e.mu.Unlock()
		return
	}
	e.permissionRequested = true
	n := e.notifier
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.PermissionTimeout)
		defer cancel()

		p, err := n.RequestPermission(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("Notification permission request failed")
			p = PermissionDefault
		}

		e.mu.Lock()
		e.permission = p
		e.mu.Unlock()

		log.Info().Str("permission", string(p)).Msg("Notification permission")
		if p == PermissionGranted {
			e.notifyNowPlaying()
		}
	}()
}

// SetNotifier attaches n after construction, for transports that need the engine
// before they can relay notifications.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
}

// SetNotificationPermission records a permission answer that arrived outside a request.
func (e *Engine) SetNotificationPermission(p Permission) {
	e.mu.Lock()
	e.permission = p
	e.permissionRequested = true
	e.mu.Unlock()

	if p == PermissionGranted {
		e.notifyNowPlaying()
	}
}

// notifyNowPlaying posts the current track when notifications are allowed.
func (e *Engine) notifyNowPlaying() {
	e.mu.Lock()
	if e.notifier == nil || e.permission != PermissionGranted || e.state.Track == nil {
		e.mu.Unlock()
		return
	}
	n := e.notifier
	t := e.state.Track
	np := NowPlaying{
		TrackID:  t.ID,
		Title:    t.Title,
		Artist:   t.Artist.Name,
		CoverURL: t.CoverURL,
		Playing:  e.state.Playing,
		Position: e.state.CurrentTime,
		Duration: e.state.Duration,
	}
	e.mu.Unlock()

	if err := n.Post(np); err != nil {
		log.Debug().Err(err).Msg("Now-playing notification failed")
	}
}
