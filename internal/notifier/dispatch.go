package notifier

import (
	"sync"

	"sigfuse/internal/logger"
	"sigfuse/internal/types"
)

const defaultQueueSize = 64

// Dispatcher decouples signal scoring from notification delivery: Enqueue
// never blocks and delivery failures never reach the caller. When the queue
// is full the newest alert is dropped with a warning.
type Dispatcher struct {
	sink  Notifier
	queue chan types.Signal

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewDispatcher(sink Notifier, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		sink:  sink,
		queue: make(chan types.Signal, queueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the delivery worker. Safe to call once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Stop drains nothing: queued alerts not yet delivered are discarded. Blocks
// until the worker exits.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

// Enqueue hands a signal to the delivery worker without blocking.
func (d *Dispatcher) Enqueue(sig types.Signal) {
	if d == nil || d.sink == nil {
		return
	}
	select {
	case d.queue <- sig:
	default:
		logger.Warnf("alert queue full, dropping alert for %s", sig.Symbol)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case sig := <-d.queue:
			if err := d.sink.SendStructured(FormatSignal(sig)); err != nil {
				logger.Warnf("alert delivery failed for %s: %v", sig.Symbol, err)
			}
		}
	}
}
