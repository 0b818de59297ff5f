package player

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-playback/internal/domain/track"
)

type step int

const (
	forward  step = 1
	backward step = -1
)

type decisionKind int

const (
	decideNothing decisionKind = iota
	decideBootstrap
	decideQueue
	decideSelected
	decideHalt
	decideRefresh
)

// decision is the outcome of one next/previous evaluation.
type decision struct {
	kind  decisionKind
	track track.Track
	index int
	play  bool
	tier  Tier
	seq   uint64
}

// NextTrack advances to the next track.
func (e *Engine) NextTrack(ctx context.Context) error {
	return e.navigate(ctx, forward)
}

// PreviousTrack moves to the previous track.
func (e *Engine) PreviousTrack(ctx context.Context) error {
	return e.navigate(ctx, backward)
}

func (e *Engine) navigate(ctx context.Context, dir step) error {
	e.mu.Lock()
	d := e.decideLocked(dir, false)
	e.mu.Unlock()

	switch d.kind {
	case decideBootstrap, decideSelected:
		return e.loadAndPlay(ctx, &d.track)
	case decideQueue:
		if d.play {
			return e.loadAndPlay(ctx, &d.track)
		}
		return e.LoadTrack(ctx, d.track)
	case decideHalt:
		e.halt()
	case decideRefresh:
		e.refreshAndSelect(d.seq, false)
	}
	return nil
}

// autoAdvance runs when the current track ends. It never waits for readiness.
func (e *Engine) autoAdvance() {
	e.mu.Lock()
	if e.closed || e.state.Track == nil || e.pending != nil {
		e.mu.Unlock()
		return
	}

	if e.mode.Repeat == RepeatOne {
		t := *e.state.Track
		e.mu.Unlock()
		log.Debug().Str("track", t.ID).Msg("Repeating track")
		if err := e.PlayImmediate(t); err != nil {
			log.Warn().Err(err).Msg("Repeat failed")
		}
		return
	}

	d := e.decideLocked(forward, true)
	e.mu.Unlock()

	switch d.kind {
	case decideBootstrap, decideQueue, decideSelected:
		if err := e.PlayImmediate(d.track); err != nil {
			log.Warn().Err(err).Str("track", d.track.ID).Msg("Auto-advance failed")
		}
	case decideHalt:
		e.halt()
	case decideRefresh:
		e.refreshAndSelect(d.seq, true)
	}
}

// decideLocked evaluates the next/previous state machine.
func (e *Engine) decideLocked(dir step, auto bool) decision {
	e.navSeq++
	seq := e.navSeq

	current := e.state.Track
	if e.pending != nil {
		current = e.pending
	}

	if current == nil {
		if first, ok := e.catalog.First(); ok {
			return decision{kind: decideBootstrap, track: first, play: true, seq: seq}
		}
	}

	eff := e.queue.effective()
	if len(eff) > 1 {
		id := ""
		if current != nil {
			id = current.ID
		}
		idx := e.queue.Resolve(id)
		next := idx + int(dir)

		if next < 0 || next >= len(eff) {
			if e.mode.Repeat != RepeatAll {
				return decision{kind: decideHalt, seq: seq}
			}
			if dir == forward {
				next = 0
			} else {
				next = len(eff) - 1
			}
		}

		e.queue.SetIndex(next)
		return decision{
			kind:  decideQueue,
			track: eff[next],
			index: next,
			play:  auto || e.state.Playing,
			seq:   seq,
		}
	}

	if e.catalog.Len() == 0 {
		if e.source == nil {
			return decision{kind: decideHalt, seq: seq}
		}
		return decision{kind: decideRefresh, seq: seq}
	}

	signedIn := e.session != nil && e.session.SignedIn()
	pick, tier, ok := e.selector.Select(Selection{
		Current:     current,
		Catalog:     e.catalog.Tracks(),
		Exclude:     e.exclusionLocked(),
		SignedIn:    signedIn,
		Recommender: e.recommender,
	})
	if !ok {
		return decision{kind: decideHalt, seq: seq}
	}

	log.Debug().Str("track", pick.ID).Str("tier", tier.String()).Msg("Auto-play selected track")
	return decision{kind: decideSelected, track: pick, play: true, tier: tier, seq: seq}
}

// exclusionLocked returns the ids the selector must skip.
func (e *Engine) exclusionLocked() map[string]struct{} {
	ex := make(map[string]struct{}, len(e.recent)+e.cfg.RecentExclusion+2)
	if e.state.Track != nil {
		ex[e.state.Track.ID] = struct{}{}
	}
	if e.pending != nil {
		ex[e.pending.ID] = struct{}{}
	}
	for _, id := range e.recent {
		ex[id] = struct{}{}
	}
	if e.recommender != nil && e.cfg.RecentExclusion > 0 {
		for _, id := range e.recommender.RecentTrackIDs(e.cfg.RecentExclusion) {
			ex[id] = struct{}{}
		}
	}
	return ex
}

// halt stops at the end of the queue. The track stays loaded at position zero.
func (e *Engine) halt() {
	e.mu.Lock()
	e.haltLocked()
	e.mu.Unlock()

	log.Info().Msg("Reached end of queue")
	e.publishState()
	e.notifyNowPlaying()
}

func (e *Engine) haltLocked() {
	e.pauseSeq++
	if err := e.media.Pause(); err != nil {
		log.Debug().Err(err).Msg("Pause at end of queue failed")
	}
	if err := e.media.Seek(0); err != nil {
		log.Debug().Err(err).Msg("Rewind at end of queue failed")
	}
	e.state.Playing = false
	e.state.CurrentTime = 0
}

// refreshAndSelect fetches the catalog in the background, then picks from every
// eligible track once. A newer navigation cancels the pick.
func (e *Engine) refreshAndSelect(seq uint64, immediate bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.CatalogRefreshTimeout)
		defer cancel()
		if err := e.RefreshCatalog(ctx); err != nil {
			log.Warn().Err(err).Msg("Catalog refresh for auto-play failed")
		}

		e.mu.Lock()
		if e.closed || e.navSeq != seq {
			e.mu.Unlock()
			return
		}
		current := e.state.Track
		pick, ok := e.selector.Any(e.catalog.Tracks(), current, e.exclusionLocked())
		if !ok {
			e.haltLocked()
			e.mu.Unlock()
			log.Info().Msg("Nothing to auto-play")
			e.publishState()
			return
		}
		e.mu.Unlock()

		if immediate {
			if err := e.PlayImmediate(pick); err != nil {
				log.Warn().Err(err).Str("track", pick.ID).Msg("Auto-play after refresh failed")
			}
			return
		}
		if err := e.loadAndPlay(e.ctx, &pick); err != nil {
			log.Warn().Err(err).Str("track", pick.ID).Msg("Auto-play after refresh failed")
		}
	}()
}
