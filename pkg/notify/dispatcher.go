package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultQueueSize bounds the dispatch queue. A full queue drops the
// notification rather than blocking the caller.
const DefaultQueueSize = 256

// dispatchJob is one queued notification.
type dispatchJob struct {
	templateName string
	to           string
	data         map[string]any
}

// Dispatcher decouples request handlers from delivery: Dispatch enqueues
// and returns immediately, a single background worker renders and sends.
// It satisfies the Notifier interfaces of the tenant and alumni packages.
type Dispatcher struct {
	gateway   *Gateway
	templates *TemplateRegistry
	logger    *zap.Logger

	jobs   chan dispatchJob
	doneCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewDispatcher builds a dispatcher over the given gateway and templates.
func NewDispatcher(gateway *Gateway, templates *TemplateRegistry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		gateway:   gateway,
		templates: templates,
		logger:    logger,
		jobs:      make(chan dispatchJob, DefaultQueueSize),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the background worker. Calling Start twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	d.wg.Add(1)
	go d.run()
}

// Stop drains the queue and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.doneCh)
	d.wg.Wait()
}

// Dispatch enqueues one notification. It never blocks and never returns
// an error: delivery problems surface in the gateway's log, not in the
// request path that triggered the notification.
func (d *Dispatcher) Dispatch(templateName, to string, data map[string]any) {
	select {
	case d.jobs <- dispatchJob{templateName: templateName, to: to, data: data}:
	default:
		d.logger.Warn("notification queue full, dropping",
			zap.String("template", templateName),
			zap.String("to", to))
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobs:
			d.deliver(job)
		case <-d.doneCh:
			// Drain what is already queued before exiting.
			for {
				select {
				case job := <-d.jobs:
					d.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(job dispatchJob) {
	rendered, err := d.templates.Render(job.templateName, job.data)
	if err != nil {
		d.logger.Error("notification render failed",
			zap.String("template", job.templateName),
			zap.String("to", job.to),
			zap.Error(err))
		return
	}

	// String-valued template data becomes log metadata; single-use
	// invitation codes never reach the delivery log.
	meta := make(map[string]string, len(job.data))
	for k, v := range job.data {
		if k == "code" {
			continue
		}
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := d.gateway.Send(ctx, SendRequest{
		To:           job.to,
		Subject:      rendered.Subject,
		HTML:         rendered.HTML,
		TemplateName: rendered.TemplateName,
		Metadata:     meta,
	}); err != nil {
		d.logger.Warn("background notification not delivered",
			zap.String("template", job.templateName),
			zap.String("to", job.to),
			zap.Error(err))
	}
}
