package scheduler

import (
	"context"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// AlertScheduler runs the alert scan on a cron schedule. The same scan is
// also reachable through the manual HTTP trigger; the dispatch-log constraint
// keeps the two from double-sending.
type AlertScheduler struct {
	cronEngine   *cron.Cron
	scanService  app.AlertScanner
	logger       *logrus.Logger
	cronSpecScan string
}

func NewAlertScheduler(
	scanService app.AlertScanner,
	logger *logrus.Logger,
	cronSpecScan string, // e.g., "0 8 * * *" (8:00 AM daily)
) *AlertScheduler {
	return &AlertScheduler{
		cronEngine:   cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		scanService:  scanService,
		logger:       logger,
		cronSpecScan: cronSpecScan,
	}
}

func (s *AlertScheduler) Start() error {
	s.logger.Info("Starting alert scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecScan, func() {
		s.logger.Info("Cron job triggered for daily alert scan.")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		result, err := s.scanService.ScanAndSend(ctx, time.Now())
		if err != nil {
			s.logger.Errorf("Error during scheduled alert scan: %v", err)
			return
		}
		s.logger.Infof("Scheduled alert scan finished. Email sends: %d, push sends: %d, alert errors: %d",
			result.Email, result.Push, len(result.Errors))
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Infof("Alert scheduler started (spec: %s).", s.cronSpecScan)
	return nil
}

func (s *AlertScheduler) Stop() {
	s.logger.Info("Stopping alert scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Alert scheduler gracefully stopped.")
}
