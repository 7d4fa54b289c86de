// Package scheduler drives the ingestion and broadcast ticks on independent
// cadences: ingestion on a short fixed interval, broadcast on a cron spec
// (typically a fixed minute of every hour).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Jobs holds the two periodic ticks. Each tick is independently fenced:
// an error is logged and the next tick runs on schedule regardless.
type Jobs struct {
	Ingest    func(ctx context.Context) error
	Broadcast func(ctx context.Context) error
}

// Scheduler runs the two jobs until its context is cancelled.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	log  *slog.Logger

	// set in Run before the cron runner starts
	ctx context.Context
}

// New creates a Scheduler. ingestEvery must be positive (the cron runner
// rounds sub-second intervals up to one second); broadcastSpec is a standard
// five-field cron expression, validated here so a bad config fails at startup.
func New(ingestEvery time.Duration, broadcastSpec string, jobs Jobs, log *slog.Logger) (*Scheduler, error) {
	if ingestEvery <= 0 {
		return nil, fmt.Errorf("ingest interval must be positive, got %s", ingestEvery)
	}
	if _, err := cron.ParseStandard(broadcastSpec); err != nil {
		return nil, fmt.Errorf("invalid broadcast schedule %q: %w", broadcastSpec, err)
	}

	s := &Scheduler{
		jobs: jobs,
		log:  log,
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(&cronLogger{log: log})))

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", ingestEvery), s.fence("ingest", jobs.Ingest)); err != nil {
		return nil, fmt.Errorf("add ingest schedule: %w", err)
	}
	if _, err := s.cron.AddFunc(broadcastSpec, s.fence("broadcast", jobs.Broadcast)); err != nil {
		return nil, fmt.Errorf("add broadcast schedule: %w", err)
	}
	return s, nil
}

// Run starts the schedules and blocks until ctx is cancelled. On shutdown no
// further ticks fire; an in-flight tick runs to completion before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// fence wraps a tick so its failure never reaches the cron runner.
func (s *Scheduler) fence(name string, job func(ctx context.Context) error) func() {
	return func() {
		if s.ctx.Err() != nil {
			return
		}
		started := time.Now()
		if err := job(s.ctx); err != nil {
			s.log.Error("tick failed", "job", name, "elapsed", time.Since(started), "error", err)
		}
	}
}

// cronLogger adapts slog to the cron.Logger interface; the cron runner only
// uses it for panic recovery output.
type cronLogger struct {
	log *slog.Logger
}

func (l *cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, kv...)
}

func (l *cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, append(kv, "error", err)...)
}
