package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-observatory/internal/weather"
)

// jobTimeout bounds one place's fetch within a collection run.
const jobTimeout = 30 * time.Second

// Fetcher is implemented by weather.Service.
type Fetcher interface {
	GetWeather(ctx context.Context, place string) (weather.MergedObservation, error)
}

// Scheduler periodically collects weather for the configured places so the
// observation history grows without inbound traffic.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Fetcher
	places    []string
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(places []string, interval time.Duration, service Fetcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		places:    places,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.places) == 0 {
		s.logger.Info("scheduler: no places configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.Collect(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", "places", len(s.places), "interval", interval)
	return nil
}

// Collect fetches every configured place concurrently and returns how many
// succeeded. Failures are logged and never stop the other places.
func (s *Scheduler) Collect(ctx context.Context) int {
	s.logger.Debug("scheduler: running weather collection")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, place := range s.places {
		place := place
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()

			merged, err := s.service.GetWeather(ctx, place)
			if err != nil {
				s.logger.Warn("scheduler: collection failed", "place", place, "error", err)
				return
			}
			s.logger.Debug("scheduler: collected", "place", place, "source", merged.SourceLabel)
			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.logger.Info("scheduler: completed weather collection", "places", len(s.places), "succeeded", ok)
	return ok
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
