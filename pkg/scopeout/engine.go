// Package scopeout exposes the acquisition engine for embedding:
// instrument discovery, coordinated capture, peak detection, and
// waveform persistence behind one runtime with replaceable adapters.
package scopeout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/SeanMcGrath/ScopeOut/internal/adapters/notify"
	"github.com/SeanMcGrath/ScopeOut/internal/adapters/observability"
	"github.com/SeanMcGrath/ScopeOut/internal/adapters/scpi"
	"github.com/SeanMcGrath/ScopeOut/internal/adapters/store"
	"github.com/SeanMcGrath/ScopeOut/internal/app/acquisition"
	"github.com/SeanMcGrath/ScopeOut/internal/app/discovery"
	"github.com/SeanMcGrath/ScopeOut/internal/domain"
	"github.com/SeanMcGrath/ScopeOut/internal/ports"
)

// EngineOption customizes the adapters wired into an Engine.
type EngineOption func(*engineOverrides)

type engineOverrides struct {
	rm       ResourceManager
	store    WaveformStore
	obs      Observability
	classify discovery.Classifier
}

// WithResourceManager injects a custom instrument transport (USB-TMC
// bridges, simulators, etc.).
func WithResourceManager(rm ResourceManager) EngineOption {
	return func(o *engineOverrides) { o.rm = rm }
}

// WithStore injects a custom waveform archive so captures can be sent
// to any database or API.
func WithStore(s WaveformStore) EngineOption {
	return func(o *engineOverrides) { o.store = s }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) EngineOption {
	return func(o *engineOverrides) { o.obs = obs }
}

// Classifier turns an opened connection into a typed instrument
// driver.
type Classifier = discovery.Classifier

// WithClassifier overrides *IDN? classification, letting callers add
// instrument families without touching the engine.
func WithClassifier(c Classifier) EngineOption {
	return func(o *engineOverrides) { o.classify = c }
}

// Engine wires discovery, acquisition, peak detection, persistence,
// and the metrics endpoint into one embeddable runtime.
type Engine struct {
	cfg   *Config
	lock  sync.Mutex
	sup   *discovery.Supervisor
	coord *acquisition.Coordinator
	sink  *notify.ChannelSink
	store ports.WaveformStore
	obs   ports.Observability

	persistQ   chan *domain.Waveform
	db         *sql.DB
	metricsSrv *http.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewEngine bootstraps the default adapters: TCP SCPI transport,
// Postgres waveform store, channel event sink, and Prometheus
// observability. Options replace any of them.
func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides engineOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.obs
	if obs == nil {
		obs = observability.NewPromObs()
	}

	rm := overrides.rm
	if rm == nil {
		var err error
		rm, err = scpi.NewResourceManager(cfg.Instruments)
		if err != nil {
			return nil, err
		}
	}

	classify := overrides.classify
	if classify == nil {
		classify = func(conn ports.Conn) (ports.Instrument, error) {
			idn, err := scpi.Identify(conn)
			if err != nil {
				return nil, err
			}
			return scpi.Classify(conn, idn)
		}
	}

	var (
		db  *sql.DB
		st  ports.WaveformStore
		err error
	)
	if overrides.store != nil {
		st = overrides.store
	} else {
		db, err = sql.Open("postgres", cfg.Database.ConnString)
		if err != nil {
			return nil, err
		}
		st = store.NewPgWaveformStore(db, cfg.Database.WaveformTable, cfg.Database.SampleTable)
	}

	e := &Engine{
		cfg:      cfg,
		sink:     notify.NewChannelSink(cfg.Acquisition.EventBuffer),
		store:    st,
		obs:      obs,
		persistQ: make(chan *domain.Waveform, cfg.Acquisition.EventBuffer+1),
		db:       db,
	}

	events := &teeSink{engine: e}
	e.sup = discovery.New(&e.lock, rm, classify, events, obs, discovery.Options{
		FindInterval:     cfg.Discovery.FindInterval,
		LivenessInterval: cfg.Discovery.LivenessInterval,
	})
	e.coord = acquisition.New(&e.lock, e.sup, events, obs, cfg.Peak.Params(), acquisition.Options{
		PollInterval:      cfg.Acquisition.PollInterval,
		TriggerDeadline:   cfg.Acquisition.TriggerDeadline,
		ChannelSetTimeout: cfg.Acquisition.ChannelSetTimeout,
	})
	return e, nil
}

// Start launches discovery, the persistence consumer, and the metrics
// endpoint. It returns immediately; call Run to block on a context.
func (e *Engine) Start() error {
	if e == nil {
		return fmt.Errorf("engine is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.group != nil {
		return fmt.Errorf("engine already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = g

	g.Go(func() error { return e.sup.Run(gctx) })
	g.Go(func() error { return e.persistLoop(gctx) })

	e.startMetrics()
	return nil
}

// Run starts the engine and blocks until the provided context is
// cancelled, then shuts down gracefully.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Shutdown stops background tasks, the metrics server, and the
// database connection.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error

	e.coord.StopAcquisition()

	e.mu.Lock()
	cancel := e.cancel
	group := e.group
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}

	e.sink.Close()

	if e.metricsSrv != nil {
		if err := e.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Acquire executes one acquisition request against the active
// instrument.
func (e *Engine) Acquire(ctx context.Context, req AcquisitionRequest) error {
	return e.coord.Acquire(ctx, req)
}

// StopAcquisition requests a cooperative stop of the in-flight run.
func (e *Engine) StopAcquisition() { e.coord.StopAcquisition() }

// SetChannel switches the data channel; the returned one-shot channel
// reports the outcome.
func (e *Engine) SetChannel(channel string) <-chan bool { return e.coord.SetChannel(channel) }

// AutoSet asks the active instrument to configure itself.
func (e *Engine) AutoSet() error { return e.coord.AutoSet() }

// State reports the discovery state.
func (e *Engine) State() DiscoveryState { return e.sup.State() }

// ActiveInstrument names the active instrument, or "" while searching.
func (e *Engine) ActiveInstrument() string {
	inst := e.sup.Active()
	if inst == nil {
		return ""
	}
	return inst.ID()
}

// StatusEvents streams human-readable engine status lines.
func (e *Engine) StatusEvents() <-chan string { return e.sink.StatusEvents() }

// Waveforms streams processed captures.
func (e *Engine) Waveforms() <-chan *Waveform { return e.sink.Waves() }

// Controls streams acquisition-control enable/disable transitions.
func (e *Engine) Controls() <-chan bool { return e.sink.Controls() }

// persistLoop archives every processed capture. A failed save is
// reported and counted but never stops acquisition.
func (e *Engine) persistLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w := <-e.persistQ:
			if err := e.store.SaveWaveform(w); err != nil {
				e.obs.IncCounter("scopeout_store_failures_total", 1)
				e.obs.LogError("waveform_save_failed", err,
					ports.Field{Key: "store", Value: e.store.Name()},
					ports.Field{Key: "wave", Value: w.ID.String()})
			}
		}
	}
}

// teeSink forwards events to subscribers and feeds captures to the
// persistence consumer.
type teeSink struct {
	engine *Engine
}

func (t *teeSink) Status(msg string) { t.engine.sink.Status(msg) }

func (t *teeSink) WaveformReady(w *domain.Waveform) {
	t.engine.sink.WaveformReady(w)
	select {
	case t.engine.persistQ <- w:
	default:
		t.engine.obs.LogError("persist_queue_full", fmt.Errorf("dropping capture %s", w.ID))
	}
}

func (t *teeSink) ControlsEnabled(enabled bool) { t.engine.sink.ControlsEnabled(enabled) }

func (e *Engine) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.metricsSrv = &http.Server{
		Addr:    e.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := e.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}
