package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/passmarket/internal/metrics"
	"go.uber.org/zap"
)

// Archiver архивирует уведомления, срок которых истёк
type Archiver interface {
	ArchiveDue(ctx context.Context) (int64, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	archiver Archiver
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(archiver Archiver, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		archiver: archiver,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("Starting background scheduler", zap.Duration("archive_interval", s.interval))

	go s.runArchiveTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	if s.started.Load() {
		<-s.done
	}
}

// runArchiveTask периодически архивирует уведомления
func (s *Scheduler) runArchiveTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.archive(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.archive(ctx)
		case <-s.stopChan:
			s.logger.Info("Archive task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Archive task cancelled")
			return
		}
	}
}

func (s *Scheduler) archive(ctx context.Context) {
	archived, err := s.archiver.ArchiveDue(ctx)
	if err != nil {
		s.logger.Error("Failed to archive notifications", zap.Error(err))
		return
	}

	metrics.RecordArchived(archived)
	if archived > 0 {
		s.logger.Info("Archived notifications", zap.Int64("count", archived))
	}
}
