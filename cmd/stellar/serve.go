package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/history"
	"github.com/edumarques81/stellar-playback/internal/domain/player"
	"github.com/edumarques81/stellar-playback/internal/infra/cdn"
	"github.com/edumarques81/stellar-playback/internal/infra/mpd"
	"github.com/edumarques81/stellar-playback/internal/infra/store"
	"github.com/edumarques81/stellar-playback/internal/infra/telemetry"
	"github.com/edumarques81/stellar-playback/internal/media"
	"github.com/edumarques81/stellar-playback/internal/transport/socketio"
	"github.com/edumarques81/stellar-playback/internal/version"
)

const shutdownTimeout = 5 * time.Second

// runServe wires the engine to MPD, the track API and Socket.IO, and serves until
// SIGINT or SIGTERM.
func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("addr", cfg.Addr()).
		Str("mpd_host", cfg.MPD.Host).
		Int("mpd_port", cfg.MPD.Port).
		Str("api", cfg.API.BaseURL).
		Bool("signed_in", cfg.API.Token != "").
		Bool("telemetry", cfg.Telemetry.Enabled).
		Msg("Configuration")

	db := store.NewDB(cfg.Storage.DBPath)
	if err := db.Open(); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	cached, err := db.LoadCatalog()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load cached catalog")
	}
	session, hasSession, err := db.LoadSession()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load session state")
	}

	mpdClient := mpd.NewClient(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
	if err := mpdClient.Connect(); err != nil {
		return err
	}
	defer mpdClient.Close()

	handleOpts := []mpd.HandleOption{mpd.WithPollInterval(cfg.MPD.PollInterval.Duration)}
	if changes, err := mpdClient.Watch("player", "mixer", "playlist"); err != nil {
		log.Warn().Err(err).Msg("MPD idle watcher unavailable, polling only")
	} else {
		handleOpts = append(handleOpts, mpd.WithWatch(changes))
	}
	element := media.NewElement(mpd.NewHandle(mpdClient, handleOpts...), cfg.Media())

	apiClient := newAPIClient()
	defer apiClient.Close()

	hist := history.NewStore(cfg.Storage.DataDir)
	defer hist.Close()

	opts := []player.Option{
		player.WithConfig(cfg.Engine()),
		player.WithCatalog(cached),
		player.WithCatalogSource(&persistingSource{src: apiClient, store: db}),
		player.WithPlayCounter(apiClient),
		player.WithSession(apiClient),
		player.WithRecommender(hist),
	}

	if rw := cdn.NewRewriter(cfg.CDN.BaseURL, cfg.CDN.Origins...); rw.Enabled() {
		opts = append(opts, player.WithURLRewriter(rw))
	}

	if cfg.Telemetry.Enabled {
		emitter := telemetry.NewEmitter(cfg.API.BaseURL,
			telemetry.WithToken(cfg.API.Token),
			telemetry.WithQueueSize(cfg.Telemetry.QueueSize),
			telemetry.WithRateLimit(cfg.Telemetry.RateLimit),
			telemetry.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout.Duration}),
		)
		go emitter.Start(ctx)
		defer emitter.Stop()
		opts = append(opts, player.WithTelemetry(emitter))
	}

	engine := player.NewEngine(element, opts...)
	defer engine.Close()

	if hasSession {
		engine.Restore(session)
	}

	socketServer, err := socketio.NewServer(engine,
		socketio.WithLiker(hist),
		socketio.WithSessionStore(db),
		socketio.WithBroadcastDebounce(cfg.Player.BroadcastDebounce.Duration),
		socketio.WithMaxConnections(cfg.Server.MaxConnections),
	)
	if err != nil {
		return fmt.Errorf("create Socket.io server: %w", err)
	}
	defer socketServer.Close()
	engine.SetNotifier(socketServer.Notifier())

	engine.Start(ctx)
	socketServer.Start(ctx)

	go func() {
		rctx, cancel := context.WithTimeout(ctx, cfg.Engine().CatalogRefreshTimeout)
		defer cancel()
		if err := engine.RefreshCatalog(rctx); err != nil {
			log.Warn().Err(err).Msg("Initial catalog refresh failed")
		}
	}()

	httpServer := &http.Server{
		Addr: cfg.Addr(),
		Handler: newRouter(routes{
			socket:    socketServer,
			state:     socketServer.StateHandler(),
			health:    mpdClient.Ping,
			staticDir: cfg.Server.StaticDir,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	socketServer.SaveSession()

	log.Info().Msg("Server stopped")
	return nil
}
