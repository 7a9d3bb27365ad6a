// Package audit records admin access decisions asynchronously. Events are
// persisted through an AccessEventRepository when one is configured and
// written to the log otherwise.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ferreteria/storefront/models"
	"github.com/ferreteria/storefront/repositories"
	"github.com/ferreteria/storefront/services"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Service handles asynchronous access auditing
type Service struct {
	repo        repositories.AccessEventRepository
	logger      *zap.Logger
	eventChan   chan *models.AccessEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	processed uint64
	failed    uint64
	dropped   uint64
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewService creates a new audit service. A nil repo selects the log sink.
func NewService(repo repositories.AccessEventRepository, logger *zap.Logger, config Config) *Service {
	def := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	return &Service{
		repo:        repo,
		logger:      logger,
		eventChan:   make(chan *models.AccessEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Persistent reports whether events are stored in a database.
func (s *Service) Persistent() bool {
	return s.repo != nil
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize),
		zap.Bool("persistent", s.Persistent()))

	return nil
}

// Stop stops accepting events and waits for pending ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues an event without blocking. A full buffer drops the event.
func (s *Service) Record(event *models.AccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.dropped++
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Action)),
			zap.String("path", event.Path))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes events from the channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	for event := range s.eventChan {
		err := s.processEvent(event)

		s.mu.Lock()
		if err != nil {
			s.failed++
		} else {
			s.processed++
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Action)),
				zap.String("path", event.Path))
		}
	}
}

// processEvent writes a single event to its sink
func (s *Service) processEvent(event *models.AccessEvent) error {
	if s.repo == nil {
		s.logger.Info("access event", eventFields(event)...)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to insert access event: %w", err)
	}
	return nil
}

func eventFields(e *models.AccessEvent) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", e.ID.String()),
		zap.String("action", string(e.Action)),
		zap.String("path", e.Path),
		zap.String("token_state", e.TokenState),
		zap.String("request_id", e.RequestID),
		zap.String("ip_address", e.IPAddress),
	}
	if e.Subject != nil {
		fields = append(fields, zap.String("subject", *e.Subject))
	}
	if e.Role != nil {
		fields = append(fields, zap.String("role", *e.Role))
	}
	if e.RedirectTo != nil {
		fields = append(fields, zap.String("redirect_to", *e.RedirectTo))
	}
	return fields
}

// Recent lists stored events, newest first.
func (s *Service) Recent(ctx context.Context, filter repositories.AccessEventFilter) ([]*models.AccessEvent, error) {
	if s.repo == nil {
		return nil, services.ErrAuditUnavailable
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(err)
	}
	return events, nil
}

// Prune deletes events older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil || retention <= 0 {
		return 0, nil
	}
	n, err := s.repo.DeleteBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, services.ErrDatabaseError.Wrap(err)
	}
	return n, nil
}

// StartRetentionWorker prunes old events on a cron schedule until stopCh is
// closed. expr accepts five-field expressions and descriptors such as
// "@hourly" or "@every 30m".
func (s *Service) StartRetentionWorker(expr string, retention time.Duration, stopCh <-chan struct{}) error {
	if s.repo == nil || retention <= 0 {
		return nil
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", expr, err)
	}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := s.Prune(ctx, retention)
		if err != nil {
			s.logger.Error("failed to prune access events", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("pruned access events", zap.Int64("removed", n))
		}
	}))
	c.Start()

	<-stopCh
	<-c.Stop().Done()
	return nil
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Processed:     s.processed,
		Failed:        s.failed,
		Dropped:       s.dropped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int    `json:"bufferSize"`
	PendingEvents int    `json:"pendingEvents"`
	WorkerCount   int    `json:"workerCount"`
	Started       bool   `json:"started"`
	Processed     uint64 `json:"processed"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
}

// RequestMeta identifies the HTTP request behind an event.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// Convenience methods for recording common events

// LoginSucceeded records a successful admin login and its landing page.
func (s *Service) LoginSucceeded(meta RequestMeta, subject, email, role, landing string) error {
	event := models.NewAccessEvent(models.AccessActionLoginSucceeded, "/admin/login").
		WithIdentity(subject, email, role).
		WithRedirect(landing).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent)
	return s.Record(event)
}

// LoginFailed records a rejected login attempt.
func (s *Service) LoginFailed(meta RequestMeta, email, reason string) error {
	event := models.NewAccessEvent(models.AccessActionLoginFailed, "/admin/login").
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent).
		WithDetails(map[string]string{"email": email, "reason": reason})
	return s.Record(event)
}

// Logout records an admin logout. Identity fields may be empty.
func (s *Service) Logout(meta RequestMeta, subject, email, role string) error {
	event := models.NewAccessEvent(models.AccessActionLogout, "/admin/logout").
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent)
	if subject != "" || role != "" {
		event.WithIdentity(subject, email, role)
	}
	return s.Record(event)
}

// APIDenied records an admin API call refused for lack of permission.
func (s *Service) APIDenied(meta RequestMeta, path, subject, email, role, permission string) error {
	event := models.NewAccessEvent(models.AccessActionAPIDenied, path).
		WithIdentity(subject, email, role).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent).
		WithDetails(map[string]string{"permission": permission})
	return s.Record(event)
}
