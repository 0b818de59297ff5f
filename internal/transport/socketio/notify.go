package socketio

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
)

// ErrNoListeners is returned when a notification has nobody to go to.
var ErrNoListeners = errors.New("no connected clients")

// Emitter sends an event to every connected client.
type Emitter func(event string, args ...any)

// NotificationBridge relays permission prompts and now-playing messages to the
// connected UIs, which own the actual notification display.
type NotificationBridge struct {
	emit      Emitter
	listeners func() int

	mu      sync.Mutex
	waiters []chan player.Permission
}

// NewNotificationBridge creates a bridge that sends through emit. listeners reports
// how many clients are connected.
func NewNotificationBridge(emit Emitter, listeners func() int) *NotificationBridge {
	return &NotificationBridge{
		emit:      emit,
		listeners: listeners,
	}
}

// RequestPermission asks the clients for notification permission and waits for the
// first answer.
func (b *NotificationBridge) RequestPermission(ctx context.Context) (player.Permission, error) {
	ch := make(chan player.Permission, 1)

	b.mu.Lock()
	b.waiters = append(b.waiters, ch)
	b.mu.Unlock()

	b.emit("requestNotificationPermission")

	select {
	case p := <-ch:
		return p, nil
	case <-ctx.Done():
		b.drop(ch)
		return player.PermissionDefault, ctx.Err()
	}
}

// Answer delivers a client's permission answer. It reports whether a request was
// waiting for it.
func (b *NotificationBridge) Answer(p player.Permission) bool {
	b.mu.Lock()
	waiters := b.waiters
	b.waiters = nil
	b.mu.Unlock()

	for _, ch := range waiters {
		ch <- p
	}
	return len(waiters) > 0
}

// Post sends a now-playing message to the clients.
func (b *NotificationBridge) Post(np player.NowPlaying) error {
	if b.listeners != nil && b.listeners() == 0 {
		return ErrNoListeners
	}
	b.emit("pushNowPlaying", np)
	log.Debug().Str("track", np.TrackID).Bool("playing", np.Playing).Msg("Now playing pushed")
	return nil
}

func (b *NotificationBridge) drop(ch chan player.Permission) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, w := range b.waiters {
		if w == ch {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// ParsePermission maps a client string onto a permission, defaulting when unknown.
func ParsePermission(s string) player.Permission {
	switch player.Permission(s) {
	case player.PermissionGranted:
		return player.PermissionGranted
	case player.PermissionDenied:
		return player.PermissionDenied
	default:
		return player.PermissionDefault
	}
}
