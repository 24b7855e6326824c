// Package watcher turns media server sessions into presence updates.
package watcher

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"watchcord/internal/media"
	"watchcord/internal/models"
	"watchcord/internal/presence"
)

// PresenceSink receives the derived presence value after every poll.
// Satisfied by *presence.Mirror, which suppresses redundant updates.
type PresenceSink interface {
	UpdatePresence(p presence.Presence)
}

// ProgressStore records the episode a series was last seen at.
type ProgressStore interface {
	UpsertSeriesProgress(p models.SeriesProgress) error
}

// Watcher polls the configured media server, filters sessions down to
// the configured user, and reduces them to a single Presence for the
// sink. A realtime subscription, when the source offers one, only
// triggers an early poll; the poll result stays authoritative.
type Watcher struct {
	sink     PresenceSink
	progress ProgressStore
	interval time.Duration

	mu          sync.RWMutex
	source      media.SessionSource
	username    string
	current     []models.PlaybackSession
	lastTracked models.MediaRef
	ctx         context.Context
	wsCancel    context.CancelFunc

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	triggerPoll chan struct{}
	pollNotify  chan struct{}
}

func New(sink PresenceSink, progress ProgressStore, interval time.Duration) *Watcher {
	return &Watcher{
		sink:        sink,
		progress:    progress,
		interval:    interval,
		triggerPoll: make(chan struct{}, 1),
	}
}

// SetSource swaps in a media server connection, replacing any previous
// one. username restricts which sessions count; empty matches all.
func (w *Watcher) SetSource(src media.SessionSource, username string) {
	w.mu.Lock()
	if w.wsCancel != nil {
		w.wsCancel()
		w.wsCancel = nil
	}
	w.source = src
	w.username = username
	w.lastTracked = models.MediaRef{}
	ctx := w.ctx
	if rt, ok := src.(media.RealtimeSubscriber); ok && ctx != nil {
		var wsCtx context.Context
		wsCtx, w.wsCancel = context.WithCancel(ctx)
		w.mu.Unlock()
		go w.consumeUpdates(wsCtx, rt)
		w.pokePoll()
		return
	}
	w.mu.Unlock()
	// Before Start the initial poll covers the new source.
	if ctx != nil {
		w.pokePoll()
	}
}

// ClearSource drops the media server connection and reports idle.
func (w *Watcher) ClearSource() {
	w.mu.Lock()
	if w.wsCancel != nil {
		w.wsCancel()
		w.wsCancel = nil
	}
	w.source = nil
	w.username = ""
	w.current = nil
	w.lastTracked = models.MediaRef{}
	w.mu.Unlock()
	w.sink.UpdatePresence(presence.Idle())
}

func (w *Watcher) HasSource() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.source != nil
}

func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		w.mu.Lock()
		w.ctx = ctx
		if rt, ok := w.source.(media.RealtimeSubscriber); ok {
			var wsCtx context.Context
			wsCtx, w.wsCancel = context.WithCancel(ctx)
			go w.consumeUpdates(wsCtx, rt)
		}
		w.mu.Unlock()
		w.done = make(chan struct{})
		go w.run(ctx)
	})
}

func (w *Watcher) Stop() {
	if w.cancel != nil && w.done != nil {
		w.cancel()
		<-w.done
	}
}

// CurrentSessions returns the sessions seen on the last poll, already
// filtered to the configured user.
func (w *Watcher) CurrentSessions() []models.PlaybackSession {
	w.mu.RLock()
	defer w.mu.RUnlock()
	result := make([]models.PlaybackSession, len(w.current))
	copy(result, w.current)
	return result
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		case <-w.triggerPoll:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) consumeUpdates(ctx context.Context, rt media.RealtimeSubscriber) {
	ch, err := rt.Subscribe(ctx)
	if err != nil {
		log.Printf("realtime subscribe: %v", err)
		return
	}
	for range ch {
		w.pokePoll()
	}
}

// pokePoll requests an early poll; a request already pending is enough.
func (w *Watcher) pokePoll() {
	select {
	case w.triggerPoll <- struct{}{}:
	default:
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer w.notifyPolled()

	w.mu.RLock()
	src := w.source
	user := w.username
	w.mu.RUnlock()
	if src == nil {
		return
	}

	sessions, err := src.Sessions(ctx)
	if err != nil {
		// Transient: keep the previous presence rather than flapping
		// to idle while the server is unreachable.
		log.Printf("polling %s: %v", src.Name(), err)
		return
	}

	mine := filterUser(sessions, user)
	w.mu.Lock()
	w.current = mine
	w.mu.Unlock()

	active, ok := reduce(mine)
	if !ok {
		w.sink.UpdatePresence(presence.Idle())
		return
	}
	w.trackProgress(active.Media)
	w.sink.UpdatePresence(presence.Watching(active.Media))
}

func (w *Watcher) trackProgress(ref models.MediaRef) {
	if !ref.IsEpisode() {
		return
	}
	w.mu.Lock()
	if ref == w.lastTracked {
		w.mu.Unlock()
		return
	}
	w.lastTracked = ref
	w.mu.Unlock()

	err := w.progress.UpsertSeriesProgress(models.SeriesProgress{
		SeriesID:      ref.SeriesID,
		SeriesTitle:   ref.SeriesTitle,
		SeasonNumber:  ref.SeasonNumber,
		EpisodeNumber: ref.EpisodeNumber,
	})
	if err != nil {
		log.Printf("tracking %s: %v", ref.SeriesTitle, err)
	}
}

func (w *Watcher) notifyPolled() {
	if w.pollNotify != nil {
		select {
		case w.pollNotify <- struct{}{}:
		default:
		}
	}
}

func filterUser(sessions []models.PlaybackSession, username string) []models.PlaybackSession {
	if username == "" {
		return sessions
	}
	var mine []models.PlaybackSession
	for _, s := range sessions {
		if strings.EqualFold(s.UserName, username) {
			mine = append(mine, s)
		}
	}
	return mine
}

// reduce picks the session worth mirroring: the first one actively
// playing, else the first one there is.
func reduce(sessions []models.PlaybackSession) (models.PlaybackSession, bool) {
	if len(sessions) == 0 {
		return models.PlaybackSession{}, false
	}
	for _, s := range sessions {
		if s.State != models.SessionStatePaused {
			return s, true
		}
	}
	return sessions[0], true
}
