package worker

import (
	"sync"

	"github.com/nimasrn/message-automation/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs out to a fixed number of goroutines. A manager is
// single use: Start, Enqueue any number of jobs, then Exit to drain and wait.
type WorkerManager struct {
	jobChannel     chan interface{}
	numberOfWorker int
	do             WorkerHandler
	waiter         *sync.WaitGroup
	closeOnce      sync.Once
}

func NewWorkerManager(bufferSize, numberOfWorkers int) *WorkerManager {
	if numberOfWorkers < 1 {
		numberOfWorkers = 1
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     make(chan interface{}, bufferSize),
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue publishes a job onto the channel. It blocks when the buffer is full.
func (w *WorkerManager) Enqueue(val interface{}) {
	w.jobChannel <- val
}

// Start launches the workers and returns immediately.
func (w *WorkerManager) Start() {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for job := range w.jobChannel {
				w.run(index, job)
			}
		}(i)
	}
}

func (w *WorkerManager) run(index int, job interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker recovered from panic", "worker", index, "panic", r)
		}
	}()
	w.do(index, job)
}

// Exit stops accepting jobs and blocks until every queued job is handled.
func (w *WorkerManager) Exit() {
	w.closeOnce.Do(func() {
		close(w.jobChannel)
	})
	w.waiter.Wait()
}
