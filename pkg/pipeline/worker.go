package pipeline

import (
	"context"
	"sync"

	"github.com/bobthearsonist/meeting-coach/pkg/models"
)

// WorkerPool runs segment analysis concurrently so one slow classification
// never blocks intake of the next utterance.
type WorkerPool struct {
	workers    int
	taskQueue  chan models.Segment
	workerFunc func(context.Context, models.Segment)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers int, queueSize int, workerFunc func(context.Context, models.Segment)) *WorkerPool {
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan models.Segment, queueSize),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *WorkerPool) Submit(seg models.Segment) bool {
	select {
	case wp.taskQueue <- seg:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case seg, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			wp.workerFunc(ctx, seg)

		case <-ctx.Done():
			return
		}
	}
}
