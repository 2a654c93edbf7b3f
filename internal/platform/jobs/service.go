package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/platform/querier"
)

const JobMilestoneSweep = "milestone_sweep"

type Sweeper interface {
	SweepMilestones(ctx context.Context) (performance.SweepResult, error)
}

type Notifier interface {
	NotifyMany(ctx context.Context, userIDs []string, ntype, title, body string) int
}

type Service struct {
	DB       querier.Querier
	sweeper  Sweeper
	notifier Notifier
	interval time.Duration
	queue    chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db querier.Querier, sweeper Sweeper, notifier Notifier, interval time.Duration) *Service {
	return &Service{
		DB:       db,
		sweeper:  sweeper,
		notifier: notifier,
		interval: interval,
		queue:    make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.interval > 0 {
		go s.scheduleSweeps(ctx, s.interval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// SweepNow runs the milestone sweep synchronously and records it as a job run.
func (s *Service) SweepNow(ctx context.Context) (performance.SweepResult, error) {
	details, err := s.RunNow(ctx, JobMilestoneSweep, s.sweep)
	result, _ := details.(performance.SweepResult)
	return result, err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleSweeps(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobMilestoneSweep, s.sweep)
		}
	}
}

// sweep completes due Effective milestones and reminds participants of overdue ones.
func (s *Service) sweep(ctx context.Context) (any, error) {
	result, err := s.sweeper.SweepMilestones(ctx)
	if s.notifier != nil {
		for _, overdue := range result.Overdue {
			title := fmt.Sprintf("%s is overdue", overdue.Milestone.Title)
			body := fmt.Sprintf("%s for %s was due on %s.", overdue.Milestone.Title, overdue.CycleName, overdue.Milestone.DueDate.Format("2006-01-02"))
			s.notifier.NotifyMany(ctx, overdue.Participants, notifications.TypeMilestoneOverdue, title, body)
		}
	}
	return result, err
}
