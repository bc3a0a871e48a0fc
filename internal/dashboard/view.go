// Package dashboard keeps the aggregated radar view: current weather, the
// rotating news list and the price-board image. It owns its refresh and
// rotation timers through an explicit Start/Stop lifecycle.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/news"
	"github.com/i474232898/agro-portal/internal/scheduler"
	"github.com/i474232898/agro-portal/internal/weather"
)

const (
	DefaultRefreshInterval  = 15 * time.Minute
	DefaultRotationInterval = 6 * time.Second
	defaultFetchTimeout     = 30 * time.Second
)

type WeatherSource interface {
	GetConditions(ctx context.Context, c weather.Coordinates) (weather.Conditions, error)
}

type NewsSource interface {
	GetNews(ctx context.Context) []news.Item
}

type AssetSource interface {
	Current(ctx context.Context) string
}

// Config controls the view's timers and the coordinates it asks weather for.
type Config struct {
	RefreshInterval  time.Duration
	RotationInterval time.Duration
	FetchTimeout     time.Duration
	Coordinates      weather.Coordinates
}

// State is a snapshot of the view. It shares nothing with the live view.
type State struct {
	Weather      *weather.Conditions `json:"weather"`
	WeatherError string              `json:"weatherError,omitempty"`
	News         []news.Item         `json:"noticias"`
	NewsIndex    int                 `json:"newsIndex"`
	CurrentNews  *news.Item          `json:"currentNews,omitempty"`
	PizarraURL   string              `json:"pizarraUrl"`
	LastRefresh  time.Time           `json:"lastRefresh"`
	Running      bool                `json:"running"`
}

// NoticeKind classifies the outcome of a manual refresh.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the transient message shown after a manual refresh.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// View aggregates weather, news and the current asset. Each refresh replaces
// the state wholesale; sources fail independently.
type View struct {
	weather WeatherSource
	news    NewsSource
	assets  AssetSource
	cfg     Config

	sched *scheduler.Scheduler

	mu    sync.RWMutex
	state State
	// gen changes on every Stop; refreshes started under an older
	// generation are discarded.
	gen uint64
	now func() time.Time
}

func NewView(w WeatherSource, n NewsSource, a AssetSource, cfg Config) *View {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.RotationInterval <= 0 {
		cfg.RotationInterval = DefaultRotationInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}

	v := &View{
		weather: w,
		news:    n,
		assets:  a,
		cfg:     cfg,
		now:     time.Now,
	}
	v.sched = scheduler.New(
		scheduler.Job{
			Name:      "radar-refresh",
			Interval:  cfg.RefreshInterval,
			Immediate: true,
			Run:       v.backgroundRefresh,
		},
		scheduler.Job{
			Name:     "news-rotation",
			Interval: cfg.RotationInterval,
			Run:      v.advance,
		},
	)
	return v
}

// Start schedules the refresh job, which runs once immediately, and the
// rotation job.
func (v *View) Start() error {
	if err := v.sched.Start(); err != nil {
		return err
	}
	v.mu.Lock()
	v.state.Running = true
	v.mu.Unlock()
	logger.Info("dashboard: started (refresh every %s, rotation every %s)", v.cfg.RefreshInterval, v.cfg.RotationInterval)
	return nil
}

// Stop tears down both timers. Fetches already in flight complete but their
// results are dropped.
func (v *View) Stop() {
	v.mu.Lock()
	v.gen++
	v.state.Running = false
	v.mu.Unlock()

	v.sched.Stop()
	logger.Info("dashboard: stopped")
}

func (v *View) backgroundRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), v.cfg.FetchTimeout)
	defer cancel()

	if err := v.refresh(ctx); err != nil {
		logger.Warn("dashboard: background refresh: %v", err)
	}
}

// Refresh runs one refresh cycle on demand and reports the outcome.
func (v *View) Refresh(ctx context.Context) Notice {
	if err := v.refresh(ctx); err != nil {
		return Notice{Kind: NoticeError, Message: "weather update failed: " + err.Error()}
	}
	return Notice{Kind: NoticeSuccess, Message: "data refreshed"}
}

// refresh fetches all sources concurrently and applies each result on its
// own. It returns the weather error, if any; news and assets cannot fail.
func (v *View) refresh(ctx context.Context) error {
	v.mu.RLock()
	gen := v.gen
	v.mu.RUnlock()

	var (
		wg         sync.WaitGroup
		conditions weather.Conditions
		weatherErr error
		items      []news.Item
		assetURL   string
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		conditions, weatherErr = v.weather.GetConditions(ctx, v.cfg.Coordinates)
	}()
	go func() {
		defer wg.Done()
		items = v.news.GetNews(ctx)
	}()
	go func() {
		defer wg.Done()
		assetURL = v.assets.Current(ctx)
	}()
	wg.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		logger.Debug("dashboard: discarding refresh from a stopped view")
		return weatherErr
	}

	next := v.state
	if weatherErr == nil {
		next.Weather = &conditions
		next.WeatherError = ""
	} else {
		next.WeatherError = weatherErr.Error()
	}
	next.News = items
	if next.NewsIndex >= len(items) {
		next.NewsIndex = 0
	}
	next.PizarraURL = assetURL
	next.LastRefresh = v.now().UTC()
	v.state = next

	return weatherErr
}

// advance moves the rotation forward; a list of one or zero items stays put.
func (v *View) advance() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if n := len(v.state.News); n > 1 {
		v.state.NewsIndex = (v.state.NewsIndex + 1) % n
	}
}

// Next shows the following news item, wrapping to the first.
func (v *View) Next() State {
	return v.step(1)
}

// Prev shows the preceding news item, wrapping to the last.
func (v *View) Prev() State {
	return v.step(-1)
}

// StateFrom returns a copy of the state positioned delta items away from a
// caller-held index, leaving the shared rotation untouched. Each client can
// keep its own carousel position this way.
func (v *View) StateFrom(index, delta int) State {
	s := v.State()
	if n := len(s.News); n > 0 {
		s.NewsIndex = wrapIndex(index+delta, n)
		item := s.News[s.NewsIndex]
		s.CurrentNews = &item
	}
	return s
}

func wrapIndex(i, n int) int {
	return (i%n + n) % n
}

func (v *View) step(delta int) State {
	v.mu.Lock()
	if n := len(v.state.News); n > 0 {
		v.state.NewsIndex = wrapIndex(v.state.NewsIndex+delta, n)
	}
	v.mu.Unlock()
	return v.State()
}

// State returns a copy of the current view state.
func (v *View) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := v.state
	if s.Weather != nil {
		w := *s.Weather
		s.Weather = &w
	}
	if s.News != nil {
		s.News = append([]news.Item(nil), s.News...)
	}
	if s.NewsIndex < len(s.News) {
		item := s.News[s.NewsIndex]
		s.CurrentNews = &item
	}
	return s
}
