package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/models"
)

// ReconcilerConfig holds the schedule for payment reconciliation
type ReconcilerConfig struct {
	Schedule   string        // Standard 5-field cron spec
	StaleAfter time.Duration // Processing payments untouched for this long are checked
	BatchSize  int           // Max bookings checked per run
	RunTimeout time.Duration // Deadline for one run
}

// DefaultReconcilerConfig returns default configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Schedule:   "*/10 * * * *",
		StaleAfter: 30 * time.Minute,
		BatchSize:  50,
		RunTimeout: 2 * time.Minute,
	}
}

// PaymentReconciler periodically settles payments whose webhook never arrived
type PaymentReconciler struct {
	cron     *cron.Cron
	payments *PaymentService
	config   ReconcilerConfig
	logger   *logrus.Logger

	mu      sync.Mutex
	running bool
}

// NewPaymentReconciler creates a new PaymentReconciler
func NewPaymentReconciler(payments *PaymentService, config ReconcilerConfig, logger *logrus.Logger) *PaymentReconciler {
	defaults := DefaultReconcilerConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}

	return &PaymentReconciler{
		cron:     cron.New(),
		payments: payments,
		config:   config,
		logger:   logger,
	}
}

// Start schedules the reconciliation job
func (r *PaymentReconciler) Start() error {
	if _, err := r.cron.AddFunc(r.config.Schedule, r.reconcileJob); err != nil {
		return fmt.Errorf("failed to schedule payment reconciliation: %w", err)
	}
	r.cron.Start()

	r.logger.WithFields(logrus.Fields{
		"schedule":    r.config.Schedule,
		"stale_after": r.config.StaleAfter.String(),
	}).Info("Payment reconciler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (r *PaymentReconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Payment reconciler stopped")
}

func (r *PaymentReconciler) reconcileJob() {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.RunTimeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.WithError(err).Error("Payment reconciliation failed")
	}
}

// RunOnce runs a single reconciliation pass. Overlapping runs are skipped.
func (r *PaymentReconciler) RunOnce(ctx context.Context) (*models.ReconcileResult, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Info("Payment reconciliation already running, skipping")
		return &models.ReconcileResult{}, nil
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()
	result, err := r.payments.Reconcile(ctx, r.config.StaleAfter, r.config.BatchSize)
	if err != nil {
		return result, err
	}

	r.logger.WithFields(logrus.Fields{
		"checked":   result.Checked,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
		"duration":  time.Since(start).String(),
	}).Info("Payment reconciliation finished")
	return result, nil
}

// Status reports the scheduled entries
func (r *PaymentReconciler) Status() map[string]interface{} {
	entries := r.cron.Entries()
	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}
	return map[string]interface{}{
		"schedule":  r.config.Schedule,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
