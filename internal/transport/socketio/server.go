// Package socketio provides the Socket.io facade between the playback engine and
// its UI clients.
package socketio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

const (
	// DefaultBroadcastDebounce is the window used to batch state pushes.
	DefaultBroadcastDebounce = 50 * time.Millisecond

	// commandTimeout bounds commands that wait on the engine.
	commandTimeout = 30 * time.Second
)

// Player is the engine surface driven by clients. *player.Engine implements it.
type Player interface {
	State() player.PlaybackState
	Queue() player.QueueChange
	Mode() player.Mode
	Session() player.SessionState
	Subscribe() *player.Subscription

	Play(ctx context.Context, t *track.Track) error
	Pause() error
	Stop() error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	Seek(seconds float64) error
	SetVolume(v float64) error
	ToggleMute() error
	SetPlaybackRate(r float64) error
	SetQueueAndPlay(ctx context.Context, tracks []track.Track, start int) error
	SetShuffleMode(on bool)
	ToggleShuffle()
	SetRepeatMode(m player.RepeatMode)
	CycleRepeat() player.RepeatMode
	RefreshCatalog(ctx context.Context) error
	SetNotificationPermission(p player.Permission)
}

// Liker records likes. *history.Store implements it.
type Liker interface {
	Like(trackID string)
	Unlike(trackID string)
}

// SessionStore persists UI session state. *store.DB implements it.
type SessionStore interface {
	SaveSession(s player.SessionState) error
}

// Option configures a Server.
type Option func(*Server)

// WithLiker sets where like/unlike commands are recorded.
func WithLiker(l Liker) Option {
	return func(s *Server) {
		s.likes = l
	}
}

// WithSessionStore sets where session state is saved after each broadcast.
func WithSessionStore(st SessionStore) Option {
	return func(s *Server) {
		s.sessions = st
	}
}

// WithBroadcastDebounce sets the broadcast batching window.
func WithBroadcastDebounce(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithMaxConnections caps concurrent remote clients.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		s.limiter = NewConnectionLimiter(n)
	}
}

// Server handles Socket.io connections and events.
type Server struct {
	io       *socket.Server
	player   Player
	likes    Liker
	sessions SessionStore
	bridge   *NotificationBridge
	limiter  *ConnectionLimiter
	debounce time.Duration

	debouncer *BroadcastDebouncer

	mu      sync.RWMutex
	clients map[string]*socket.Socket

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new Socket.io server.
func NewServer(p Player, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("player is required")
	}

	ioOpts := socket.DefaultServerOptions()
	ioOpts.SetPingTimeout(20 * time.Second)
	ioOpts.SetPingInterval(25 * time.Second)
	ioOpts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:       socket.NewServer(nil, ioOpts),
		player:   p,
		limiter:  NewConnectionLimiter(0),
		debounce: DefaultBroadcastDebounce,
		clients:  make(map[string]*socket.Socket),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.bridge = NewNotificationBridge(s.broadcast, s.ClientCount)
	s.debouncer = NewBroadcastDebouncer(s.debounce, s.onStateFlush, s.BroadcastQueue)
	s.setupHandlers()

	return s, nil
}

// Notifier returns the bridge to hand to the engine.
func (s *Server) Notifier() player.Notifier {
	return s.bridge
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcast(event string, args ...any) {
	s.io.Emit(event, args...)
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	commands := s.commands()

	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := client.Handshake().Address

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Client connected")

		_, evicted := s.limiter.TryAdd(clientID, addr)

		s.mu.Lock()
		s.clients[clientID] = client
		old := s.clients[evicted]
		delete(s.clients, evicted)
		s.mu.Unlock()

		if old != nil {
			log.Info().Str("id", evicted).Msg("Evicting oldest remote client")
			old.Disconnect(true)
		}

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
			s.pushQueue(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("getQueue", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getQueue")
			s.pushQueue(client)
		})

		client.On("getSystemInfo", func(args ...any) {
			client.Emit("pushSystemInfo", GetSystemInfo(s.ClientCount()))
		})

		for name, fn := range commands {
			client.On(name, func(args ...any) {
				log.Debug().Str("id", clientID).Str("cmd", name).Interface("data", args).Msg("command")
				fn(args...)
			})
		}
	})
}

// Start forwards engine changes to clients until ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) {
	sub := s.player.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info().Msg("Engine subscription started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-sub.Done:
				log.Info().Msg("Engine subscription closed")
				return
			case <-sub.TrackChanged:
				s.debouncer.Trigger(TopicTrack)
			case <-sub.StateChanged:
				s.debouncer.Trigger(TopicState)
			case <-sub.ErrorChanged:
				s.debouncer.Trigger(TopicError)
			case <-sub.QueueChanged:
				s.debouncer.Trigger(TopicQueue)
			case <-sub.ModeChanged:
				s.debouncer.Trigger(TopicMode)
			}
		}
	}()
}

// onStateFlush pushes state and persists the UI session.
func (s *Server) onStateFlush() {
	s.BroadcastState()
	s.SaveSession()
}

// SaveSession writes the current session state to the store, if any.
func (s *Server) SaveSession() {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.SaveSession(s.player.Session()); err != nil {
		log.Warn().Err(err).Msg("Failed to save session state")
	}
}

// StatePayload builds the pushState message.
func (s *Server) StatePayload() map[string]interface{} {
	state := s.player.State()
	mode := s.player.Mode()

	out := state.ToJSON()
	out["random"] = mode.Shuffle
	out["repeat"] = mode.Repeat != player.RepeatNone
	out["repeatSingle"] = mode.Repeat == player.RepeatOne
	out["repeatMode"] = string(mode.Repeat)
	out["position"] = s.player.Queue().Index
	return out
}

// QueuePayload builds the pushQueue message, in play order.
func (s *Server) QueuePayload() []map[string]interface{} {
	q := s.player.Queue()
	items := make([]map[string]interface{}, 0, len(q.Effective))
	for i, t := range q.Effective {
		items = append(items, map[string]interface{}{
			"position":    i,
			"trackId":     t.ID,
			"title":       t.Title,
			"artist":      t.Artist.Name,
			"albumart":    t.CoverURL,
			"uri":         t.AudioURL,
			"duration":    t.Duration,
			"aiGenerated": t.IsAIGenerated(),
			"current":     i == q.Index,
		})
	}
	return items
}

// pushState sends current state to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit("pushState", s.StatePayload())
}

// pushQueue sends current queue to a client.
func (s *Server) pushQueue(client *socket.Socket) {
	client.Emit("pushQueue", s.QueuePayload())
}

// BroadcastState sends state to all connected clients.
func (s *Server) BroadcastState() {
	state := s.StatePayload()
	s.io.Emit("pushState", state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		log.Debug().RawJSON("state", data).Int("clients", s.ClientCount()).Msg("Broadcast state")
	}
}

// BroadcastQueue sends queue to all connected clients.
func (s *Server) BroadcastQueue() {
	s.io.Emit("pushQueue", s.QueuePayload())
}

// StateHandler serves the current state as JSON.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.StatePayload()); err != nil {
			log.Error().Err(err).Msg("Failed to encode state")
		}
	}
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops broadcasting, waits for in-flight commands and closes the Socket.io server.
func (s *Server) Close() error {
	s.cancel()
	s.debouncer.Stop()
	s.wg.Wait()
	s.io.Close(nil)
	return nil
}
