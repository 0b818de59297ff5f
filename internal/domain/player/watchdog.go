package player

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// watchdogState is the position memory between watchdog ticks.
type watchdogState struct {
	token      uint64
	position   float64
	seen       bool
	recovering bool
}

func (w *watchdogState) forget() {
	w.seen = false
}

// runWatchdog checks playback health on every tick until ctx or the engine is done.
func (e *Engine) runWatchdog(ctx context.Context) {
	defer e.wg.Done()

	log.Debug().Dur("interval", e.cfg.WatchdogInterval).Msg("Playback watchdog started")

	ticker := time.NewTicker(e.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.watchdogTick()
		}
	}
}

// watchdogTick recovers playback that is paused against the engine's will and
// playback whose position stopped advancing.
func (e *Engine) watchdogTick() {
	e.mu.Lock()
	if e.closed || e.state.Track == nil || !e.state.Playing || e.pending != nil || e.wd.recovering {
		e.wd.forget()
		e.mu.Unlock()
		return
	}

	snap := e.media.Snapshot()

	if snap.Paused && !snap.Ended {
		e.wd.forget()
		if snap.Source == "" {
			log.Warn().Str("track", e.state.Track.ID).Msg("Media source was cleared, re-applying")
			if _, err := e.media.SetSource(e.rewrite(e.state.Track.AudioURL)); err == nil {
				if err := e.media.Load(); err != nil {
					log.Warn().Err(err).Msg("Reload after lost source failed")
				}
			}
		}

		if err := e.media.PlayNow(); err != nil {
			e.state.Playing = false
			e.setErrorLocked(&Error{Kind: KindPlaybackRejected, Message: msgPlaybackStopped, Err: err})
			e.mu.Unlock()

			log.Warn().Err(err).Msg("Watchdog could not resume playback")
			e.publishError()
			return
		}
		e.mu.Unlock()

		log.Info().Msg("Watchdog resumed paused playback")
		e.publishState()
		return
	}

	pos := snap.CurrentTime
	nearEnd := snap.Duration > 0 && snap.Duration-pos <= e.cfg.NearEndMargin
	stalled := e.wd.seen && e.wd.token == snap.Token && pos == e.wd.position && !nearEnd && !snap.Paused

	if !stalled {
		e.wd.token = snap.Token
		e.wd.position = pos
		e.wd.seen = true
		e.mu.Unlock()
		return
	}

	e.wd.forget()
	e.wd.recovering = true
	if err := e.media.Pause(); err != nil {
		log.Debug().Err(err).Msg("Pause for stall recovery failed")
	}
	token := snap.Token
	pauseSeq := e.pauseSeq
	e.wg.Add(1)
	e.mu.Unlock()

	log.Warn().Float64("position", pos).Msg("Playback stalled, resuming")
	go e.recoverStall(token, pauseSeq, pos)
}

// recoverStall resumes a stalled track from pos after a short delay.
func (e *Engine) recoverStall(token, pauseSeq uint64, pos float64) {
	defer e.wg.Done()

	if e.cfg.StallResumeDelay > 0 {
		t := time.NewTimer(e.cfg.StallResumeDelay)
		defer t.Stop()
		select {
		case <-e.ctx.Done():
			e.mu.Lock()
			e.wd.recovering = false
			e.mu.Unlock()
			return
		case <-t.C:
		}
	}

	e.mu.Lock()
	e.wd.recovering = false
	if e.closed || e.state.Track == nil || e.pauseSeq != pauseSeq || e.media.Snapshot().Token != token {
		e.mu.Unlock()
		return
	}

	if err := e.media.Seek(pos); err != nil {
		log.Debug().Err(err).Msg("Seek for stall recovery failed")
	}
	if err := e.media.PlayNow(); err != nil {
		e.state.Playing = false
		e.setErrorLocked(&Error{Kind: KindStallDetected, Message: messageForKind(KindStallDetected), Err: err})
		e.mu.Unlock()

		log.Warn().Err(err).Msg("Stall recovery failed")
		e.publishError()
		return
	}
	e.state.Playing = true
	e.mu.Unlock()

	e.publishState()
}
