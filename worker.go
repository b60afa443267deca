package estore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

var errPoolClosed = errors.New("worker pool is closed")

// eventTimeout 單一事件的處理上限
const eventTimeout = 30 * time.Second

type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *stripe.Event) error
}

type WorkerPool struct {
	tasks     chan func()
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	logger    *zap.Logger
	processor EventProcessor
}

func NewWorkerPool(size int, processor EventProcessor, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = defaultWorkers
	}
	wp := &WorkerPool{
		tasks:     make(chan func(), 1000),
		logger:    logger,
		processor: processor,
	}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit 關閉後提交的事件會被丟棄並記錄
func (wp *WorkerPool) Submit(ctx context.Context, event *stripe.Event) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		wp.logger.Warn("Dropping event",
			zap.String("event_id", event.ID),
			zap.Error(errPoolClosed))
		return
	}

	wp.tasks <- func() {
		ctx, cancel := context.WithTimeout(ctx, eventTimeout)
		defer cancel()
		if err := wp.processor.ProcessEvent(ctx, event); err != nil {
			wp.logger.Error("Failed to process event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID))
		}
	}
}

// Shutdown 等待已提交的事件處理完畢
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
}
