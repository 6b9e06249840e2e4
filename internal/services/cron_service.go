package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron       *cron.Cron
	auditor    *IntegrityAuditor
	auditSpec  string
	jobTimeout time.Duration
	logger     *logrus.Logger
}

// NewCronService creates a new CronService.
// auditSpec uses the six-field format: second minute hour day month weekday.
func NewCronService(auditor *IntegrityAuditor, auditSpec string, logger *logrus.Logger) *CronService {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &CronService{
		cron:       c,
		auditor:    auditor,
		auditSpec:  auditSpec,
		jobTimeout: 5 * time.Minute,
		logger:     logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	// "0 */15 * * * *" = every 15 minutes
	if _, err := s.cron.AddFunc(s.auditSpec, s.integrityAuditJob); err != nil {
		return fmt.Errorf("failed to schedule integrity audit job: %w", err)
	}
	s.logger.WithField("spec", s.auditSpec).Info("Scheduled: seat allocation integrity audit")

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) integrityAuditJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	startTime := time.Now()
	report, err := s.auditor.Audit(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Integrity audit failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"violations": len(report.Violations),
		"duration":   time.Since(startTime).String(),
	}).Info("[CRON] Integrity audit completed")
}

// RunIntegrityAuditNow runs the audit job immediately
func (s *CronService) RunIntegrityAuditNow() {
	s.logger.Info("[MANUAL] Running integrity audit now...")
	s.integrityAuditJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
