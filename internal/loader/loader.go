// Package loader manages lazy loading of the speech models. Model
// services keep weights out of memory until the first room needs them,
// and unload again after a long idle stretch.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
	"github.com/babelroom/babelroom/internal/config"
)

// Kind identifies one of the managed model backends.
type Kind string

const (
	KindASR Kind = "asr"
	KindMT  Kind = "mt"
	KindTTS Kind = "tts"
)

// State is the lifecycle position of one model kind.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unloaded"
	}
}

// ErrUnavailable is returned while a recent load failure is still inside
// its retry backoff window.
var ErrUnavailable = errors.New("model backend unavailable")

// LoadFunc warms up a model backend, typically by probing its endpoint
// so the service pulls weights into memory. UnloadFunc releases them.
type LoadFunc func(ctx context.Context) error

// UnloadFunc asks a backend to drop its weights. It may be nil for
// backends that manage their own memory.
type UnloadFunc func(ctx context.Context) error

type model struct {
	state       State
	load        LoadFunc
	unload      UnloadFunc
	lastUsed    time.Time
	lastFailure time.Time
}

// Loader tracks load state per model kind. Concurrent Ensure calls for
// the same kind collapse into a single load.
type Loader struct {
	mu      sync.Mutex
	models  map[Kind]*model
	group   singleflight.Group
	logger  *slog.Logger
	timeout time.Duration
	backoff time.Duration
	idle    time.Duration
	check   time.Duration
	now     func() time.Time
}

// New creates a loader with no registered kinds.
func New(cfg config.LoaderConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		models:  make(map[Kind]*model),
		logger:  logger,
		timeout: time.Duration(cfg.LoadTimeoutSecs) * time.Second,
		backoff: time.Duration(cfg.RetryBackoffSecs) * time.Second,
		idle:    time.Duration(cfg.IdleUnloadSecs) * time.Second,
		check:   time.Duration(cfg.IdleCheckSecs) * time.Second,
		now:     time.Now,
	}
}

// Register adds a model kind. unload may be nil.
func (l *Loader) Register(kind Kind, load LoadFunc, unload UnloadFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.models[kind] = &model{state: StateUnloaded, load: load, unload: unload}
}

// Ensure makes sure the given model kind is loaded, blocking until the
// load finishes or fails. It also refreshes the kind's idle timer.
func (l *Loader) Ensure(ctx context.Context, kind Kind) error {
	l.mu.Lock()
	m, ok := l.models[kind]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("unknown model kind %q", kind)
	}
	m.lastUsed = l.now()
	if m.state == StateReady {
		l.mu.Unlock()
		return nil
	}
	if !m.lastFailure.IsZero() && l.now().Sub(m.lastFailure) < l.backoff {
		l.mu.Unlock()
		return fmt.Errorf("%s: %w", kind, ErrUnavailable)
	}
	l.mu.Unlock()

	_, err, _ := l.group.Do(string(kind), func() (any, error) {
		return nil, l.doLoad(ctx, kind, m)
	})
	return err
}

func (l *Loader) doLoad(ctx context.Context, kind Kind, m *model) error {
	l.mu.Lock()
	if m.state == StateReady {
		l.mu.Unlock()
		return nil
	}
	m.state = StateLoading
	l.mu.Unlock()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	err := m.load(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		m.state = StateUnloaded
		m.lastFailure = l.now()
		metrics.ModelLoads.WithLabelValues(string(kind), "error").Inc()
		l.logger.Error("model load failed", "kind", kind, "error", err)
		return fmt.Errorf("load %s: %w", kind, err)
	}

	m.state = StateReady
	m.lastFailure = time.Time{}
	metrics.ModelLoads.WithLabelValues(string(kind), "ok").Inc()
	metrics.ModelsReady.WithLabelValues(string(kind)).Set(1)
	l.logger.Info("model ready", "kind", kind, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// StateOf reports the current state of a kind.
func (l *Loader) StateOf(kind Kind) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.models[kind]; ok {
		return m.state
	}
	return StateUnloaded
}

// PreloadAll warms every registered kind concurrently. Failures are
// logged but do not abort startup; the kind loads lazily on first use.
func (l *Loader) PreloadAll(ctx context.Context) {
	l.mu.Lock()
	kinds := make([]Kind, 0, len(l.models))
	for kind := range l.models {
		kinds = append(kinds, kind)
	}
	l.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			if err := l.Ensure(ctx, kind); err != nil {
				l.logger.Warn("preload failed, will retry on demand", "kind", kind, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// RunJanitor unloads kinds that have been idle past the configured
// threshold. It blocks until ctx is cancelled.
func (l *Loader) RunJanitor(ctx context.Context) {
	if l.idle <= 0 || l.check <= 0 {
		return
	}
	ticker := time.NewTicker(l.check)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.unloadIdle(ctx)
		}
	}
}

func (l *Loader) unloadIdle(ctx context.Context) {
	l.mu.Lock()
	var victims []Kind
	for kind, m := range l.models {
		if m.state == StateReady && l.now().Sub(m.lastUsed) >= l.idle {
			victims = append(victims, kind)
		}
	}
	l.mu.Unlock()

	for _, kind := range victims {
		l.Unload(ctx, kind)
	}
}

// Unload releases one kind's backend if it is ready.
func (l *Loader) Unload(ctx context.Context, kind Kind) {
	l.mu.Lock()
	m, ok := l.models[kind]
	if !ok || m.state != StateReady {
		l.mu.Unlock()
		return
	}
	m.state = StateUnloaded
	unload := m.unload
	l.mu.Unlock()

	metrics.ModelsReady.WithLabelValues(string(kind)).Set(0)
	if unload != nil {
		if err := unload(ctx); err != nil {
			l.logger.Warn("model unload failed", "kind", kind, "error", err)
			return
		}
	}
	l.logger.Info("model unloaded after idle period", "kind", kind)
}
