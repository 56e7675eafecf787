package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	task "github.com/goliatone/go-task"

	rcron "github.com/robfig/cron/v3"
)

// Logger interface shared across packages
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Scheduler runs task definitions on cron expressions. Each tick executes
// the definition through the non-raising entry point; a bad finalized
// result is routed to the error handler as a fault.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	errorHandler func(error)
	logger       Logger
	parser       Parser
	running      bool
}

// NewScheduler creates a new scheduler instance with the provided options.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		parser:   StandardParser,
		errorHandler: func(err error) {
			log.Printf("cron error: %v\n", err)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	cronOpts := []rcron.Option{rcron.WithLocation(s.location)}
	if s.parser == SecondsParser {
		cronOpts = append(cronOpts, rcron.WithSeconds())
	}
	s.cron = rcron.New(cronOpts...)
	return s
}

// AddTask schedules a definition with the given seed context values.
func (s *Scheduler) AddTask(expression string, def *task.Definition, seed map[string]any) (Subscription, error) {
	if def == nil {
		return nil, fmt.Errorf("cron: definition cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(expression, func() {
		res := def.Call(context.Background(), seed)
		if res.IsBad() {
			s.handleError(fmt.Errorf("cron: scheduled task %s finished %s: %s",
				def.Name(), res.Status(), res.Reason()))
			return
		}
		if s.logger != nil {
			s.logger.Info("cron: scheduled task %s finished outcome=%s", def.Name(), res.Outcome())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron: cannot schedule task %s: %w", def.Name(), err)
	}

	return &subscription{scheduler: s, entryID: entryID}, nil
}

// AddFunc schedules a plain function, for jobs that are not task
// definitions.
func (s *Scheduler) AddFunc(expression string, fn func() error) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(expression, func() {
		if err := fn(); err != nil {
			s.handleError(err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron: cannot schedule func: %w", err)
	}
	return &subscription{scheduler: s, entryID: entryID}, nil
}

// Start begins dispatching scheduled runs in its own goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
}

// Stop halts scheduling and returns a context that completes once in-flight
// runs finish.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.cron.Stop()
}

func (s *Scheduler) handleError(err error) {
	if s.errorHandler != nil {
		s.errorHandler(err)
	}
	if s.logger != nil {
		s.logger.Error("%v", err)
	}
}

func (s *Scheduler) remove(id rcron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(id)
}

// Subscription is a handle over one scheduled entry.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once      sync.Once
	scheduler *Scheduler
	entryID   rcron.EntryID
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.scheduler.remove(s.entryID)
	})
}
