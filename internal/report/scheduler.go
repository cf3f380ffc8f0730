package report

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/repository"
	"github.com/spec-kit/chat-escalation/internal/workhours"
)

const schedulerRunTimeout = time.Minute

// Scheduler drives the two canonical report windows: a daily report at a
// fixed hour boundary for every tenant, and a nightly off-hours report sent
// when each tenant's working day opens. Failed deliveries are logged and
// retried on the next tick.
type Scheduler struct {
	cron       *cron.Cron
	aggregator *Aggregator
	tenants    repository.TenantRepository
	logger     *zap.Logger
	dailyHour  int
}

// NewScheduler constructs the scheduler; Start registers the cron entries.
func NewScheduler(aggregator *Aggregator, tenants repository.TenantRepository, logger *zap.Logger, dailyHour int) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		aggregator: aggregator,
		tenants:    tenants,
		logger:     logger,
		dailyHour:  dailyHour,
	}
}

// Start registers the recurring jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("0 %d * * *", s.dailyHour), s.runDaily); err != nil {
		return err
	}
	// Hourly sweep for tenants whose working day opens this hour.
	if _, err := s.cron.AddFunc("5 * * * *", s.runNightly); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("report scheduler started", zap.Int("daily_hour", s.dailyHour))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), schedulerRunTimeout)
	defer cancel()

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		s.logger.Error("daily report sweep failed to list tenants", zap.Error(err))
		return
	}
	start, end := DailyWindow(time.Now().UTC(), s.dailyHour)
	for _, tenant := range tenants {
		if _, err := s.aggregator.SendReport(ctx, tenant.ID, start, end); err != nil {
			s.logger.Warn("daily report not delivered",
				zap.String("tenant_id", tenant.ID),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) runNightly() {
	ctx, cancel := context.WithTimeout(context.Background(), schedulerRunTimeout)
	defer cancel()

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		s.logger.Error("nightly report sweep failed to list tenants", zap.Error(err))
		return
	}
	now := time.Now().UTC()
	for _, tenant := range tenants {
		if tenant.WorkingHoursStart == nil || tenant.WorkingHoursEnd == nil {
			continue
		}
		startMin, err := workhours.ParseClock(*tenant.WorkingHoursStart)
		if err != nil {
			s.logger.Warn("tenant has malformed working hours",
				zap.String("tenant_id", tenant.ID),
				zap.Error(err))
			continue
		}
		local := now.Add(time.Duration(tenant.TZOffsetMinutes) * time.Minute)
		if !nightlySweepDue(local, startMin) {
			continue
		}
		start, end, err := NightlyWindow(now, *tenant.WorkingHoursStart, *tenant.WorkingHoursEnd, tenant.TZOffsetMinutes)
		if err != nil {
			s.logger.Warn("nightly window unavailable",
				zap.String("tenant_id", tenant.ID),
				zap.Error(err))
			continue
		}
		if _, err := s.aggregator.SendReport(ctx, tenant.ID, start, end); err != nil {
			s.logger.Warn("nightly report not delivered",
				zap.String("tenant_id", tenant.ID),
				zap.Error(err))
		}
	}
}

// nightlySweepDue reports whether the tenant's working day opened within the
// hour before local, so openings at any minute of the hour are picked up by
// the next hourly sweep. Wraps midnight.
func nightlySweepDue(local time.Time, startMin int) bool {
	minute := local.Hour()*60 + local.Minute()
	diff := (minute - startMin + 24*60) % (24 * 60)
	return diff < 60
}
