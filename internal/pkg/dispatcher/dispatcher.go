package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Job is one actuation task. It is owned exclusively by the dispatcher
// queue from enqueue until Run returns.
type Job struct {
	ID         string
	Name       string
	Run        func(ctx context.Context)
	EnqueuedAt time.Time
}

// Dispatcher bridges the webhook's request goroutines onto the single
// runtime goroutine that owns the chat client. Submit is safe from any
// goroutine and never blocks; jobs run FIFO when the runtime goroutine
// calls RunPending.
type Dispatcher struct {
	mu      sync.Mutex
	queue   []Job
	wake    chan struct{}
	started bool
	stopped bool
}

func New() *Dispatcher {
	return &Dispatcher{
		wake: make(chan struct{}, 1),
	}
}

// Start marks the dispatcher ready. The runtime goroutine calls this before
// entering its loop; Submit before Start is a programmer error.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.stopped = false
	log.Info("[Dispatcher] Started")
}

// Stop closes the queue to new work. Jobs already queued stay available for
// a final RunPending drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.stopped {
		return
	}
	d.stopped = true
	log.Infof("[Dispatcher] Stopped (%d jobs left queued)", len(d.queue))
}

// Submit enqueues a job for execution on the runtime goroutine and returns
// immediately; it never blocks on queue capacity or job completion.
func (d *Dispatcher) Submit(name string, run func(ctx context.Context)) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		panic("dispatcher: Submit called before Start; the runtime must be running first")
	}
	if d.stopped {
		d.mu.Unlock()
		log.Warnf("[Dispatcher] Dropping job %q submitted after Stop", name)
		return
	}
	job := Job{
		ID:         uuid.New().String(),
		Name:       name,
		Run:        run,
		EnqueuedAt: time.Now(),
	}
	d.queue = append(d.queue, job)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Wake signals pending work. The runtime goroutine selects on it alongside
// its update channel.
func (d *Dispatcher) Wake() <-chan struct{} {
	return d.wake
}

// RunPending executes every queued job on the caller's goroutine, in
// submission order, and returns how many ran. Only the runtime goroutine
// may call it.
func (d *Dispatcher) RunPending(ctx context.Context) int {
	d.mu.Lock()
	jobs := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, job := range jobs {
		log.Debugf("[Dispatcher] Running job %s (%s)", job.ID, job.Name)
		job.Run(ctx)
	}
	return len(jobs)
}

// Len reports the number of queued jobs.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
