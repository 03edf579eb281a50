package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/photo-blur/internal/model"
)

const (
	defaultWorkers          = 1
	defaultQueueSize        = 16
	defaultSubscriberBuffer = 8
)

// ErrShutdown is returned by Enqueue once the dispatcher stopped running.
var ErrShutdown = errors.New("dispatcher has been shutdown")

// worker runs one unit of work.
type worker interface {
	DoWork(ctx context.Context, input map[string]string) model.WorkResult
}

// repository tracks the lifecycle of work requests.
type repository interface {
	SaveWork(ctx context.Context, req model.WorkRequest) (model.WorkInfo, error)
	GetWork(ctx context.Context, id uuid.UUID) (model.WorkInfo, error)
	UpdateState(ctx context.Context, id uuid.UUID, state model.State, result model.WorkResult) (model.WorkInfo, error)
	ListByTag(ctx context.Context, tag string) ([]model.WorkInfo, error)
}

// publisher hands work requests to an external queue (e.g. Kafka).
type publisher interface {
	Produce(ctx context.Context, key []byte, v any) error
}

// recorder collects task metrics.
type recorder interface {
	RecordTask(duration time.Duration, err error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPublisher makes Enqueue publish requests instead of queueing them
// in-process. Some consumer must then call Execute for each request.
func WithPublisher(p publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithWorkers sets the number of in-process workers started by Run.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the in-process queue.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// Dispatcher schedules work requests off the caller's goroutine and
// exposes their lifecycle: ENQUEUED -> RUNNING -> SUCCEEDED | FAILED.
//
// Requests are not de-duplicated: enqueueing the same action twice runs
// it twice.
type Dispatcher struct {
	worker    worker
	repo      repository
	publisher publisher
	recorder  recorder

	workers   int
	queueSize int
	jobs      chan model.WorkRequest
	stopped   chan struct{}
	stopOnce  sync.Once

	// sendMu orders queue sends against the final drain: once closed is
	// set, nothing else enters jobs.
	sendMu sync.RWMutex
	closed bool

	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	ch   chan model.WorkInfo
	once sync.Once
}

// New creates a Dispatcher running w and tracking state in repo.
func New(w worker, repo repository, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		worker:    w,
		repo:      repo,
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		stopped:   make(chan struct{}),
		subs:      make(map[string]map[*subscription]struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.jobs = make(chan model.WorkRequest, d.queueSize)

	return d
}

// Enqueue records req as ENQUEUED and schedules it. A missing ID or
// creation time is filled in. It returns the request ID.
func (d *Dispatcher) Enqueue(ctx context.Context, req model.WorkRequest) (uuid.UUID, error) {
	select {
	case <-d.stopped:
		return uuid.Nil, ErrShutdown
	default:
	}

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	info, err := d.repo.SaveWork(ctx, req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue: %w", err)
	}
	d.publish(info)

	if d.publisher != nil {
		if err := d.publisher.Produce(ctx, []byte(req.ID.String()), req); err != nil {
			d.finish(ctx, req.ID, model.Failure(err))
			return uuid.Nil, fmt.Errorf("enqueue: %w", err)
		}
		return req.ID, nil
	}

	return d.send(ctx, req)
}

// send puts req on the local queue. A request accepted here is either
// picked up by a worker or failed by the drain in Run.
func (d *Dispatcher) send(ctx context.Context, req model.WorkRequest) (uuid.UUID, error) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	if d.closed {
		d.finish(ctx, req.ID, model.Failure(ErrShutdown))
		return uuid.Nil, ErrShutdown
	}

	select {
	case d.jobs <- req:
		return req.ID, nil
	case <-d.stopped:
		d.finish(ctx, req.ID, model.Failure(ErrShutdown))
		return uuid.Nil, ErrShutdown
	case <-ctx.Done():
		d.finish(context.WithoutCancel(ctx), req.ID, model.Failure(ctx.Err()))
		return uuid.Nil, ctx.Err()
	}
}

// Run starts the in-process workers and blocks until ctx is canceled.
// Requests still waiting in the queue are then marked as failed.
func (d *Dispatcher) Run(ctx context.Context) error {
	zlog.Logger.Info().Int("workers", d.workers).Msg("starting dispatcher")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case req := <-d.jobs:
					d.Execute(gctx, req)
				}
			}
		})
	}

	err := g.Wait()

	// Wake blocked senders first, then wait for in-flight sends to settle.
	d.stopOnce.Do(func() { close(d.stopped) })
	d.sendMu.Lock()
	d.closed = true
	d.sendMu.Unlock()
	d.drain()

	zlog.Logger.Info().Msg("dispatcher stopped")

	return err
}

// drain fails every request left in the queue after shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case req := <-d.jobs:
			d.finish(context.Background(), req.ID, model.Failure(ErrShutdown))
		default:
			return
		}
	}
}

// Execute runs req exactly once and returns its terminal WorkInfo.
// A request that already reached a terminal state (e.g. a redelivered
// message) is not run again.
func (d *Dispatcher) Execute(ctx context.Context, req model.WorkRequest) model.WorkInfo {
	if _, err := d.repo.GetWork(ctx, req.ID); err != nil {
		// Published by another process: start tracking it here.
		if _, err := d.repo.SaveWork(ctx, req); err != nil {
			zlog.Logger.Err(err).Str("id", req.ID.String()).Msg("failed to track work")
		}
	}

	info, err := d.repo.UpdateState(ctx, req.ID, model.StateRunning, model.WorkResult{})
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("id", req.ID.String()).Msg("skipping work")
		return info
	}
	d.publish(info)

	start := time.Now()
	result := d.worker.DoWork(ctx, req.Input)
	if d.recorder != nil {
		d.recorder.RecordTask(time.Since(start), result.Err)
	}

	return d.finish(ctx, req.ID, result)
}

// finish moves the work to its terminal state and notifies observers.
func (d *Dispatcher) finish(ctx context.Context, id uuid.UUID, result model.WorkResult) model.WorkInfo {
	state := model.StateSucceeded
	if !result.Succeeded() {
		state = model.StateFailed
	}

	info, err := d.repo.UpdateState(ctx, id, state, result)
	if err != nil {
		zlog.Logger.Err(err).Str("id", id.String()).Msg("failed to update work state")
		return info
	}
	d.publish(info)

	if result.Err != nil {
		zlog.Logger.Warn().
			Err(result.Err).
			Str("id", id.String()).
			Str("failure", info.Failure).
			Msg("work failed")
	} else {
		zlog.Logger.Info().
			Str("id", id.String()).
			Msg("work succeeded")
	}

	return info
}

// WorkInfo returns the current state of the work with the given ID.
func (d *Dispatcher) WorkInfo(ctx context.Context, id uuid.UUID) (model.WorkInfo, error) {
	return d.repo.GetWork(ctx, id)
}

// WorkInfosByTag returns all works carrying tag, newest first.
func (d *Dispatcher) WorkInfosByTag(ctx context.Context, tag string) ([]model.WorkInfo, error) {
	return d.repo.ListByTag(ctx, tag)
}

// Observe subscribes to state changes of works carrying tag. The returned
// function cancels the subscription and closes the channel. Updates to a
// subscriber that is not keeping up are dropped.
func (d *Dispatcher) Observe(tag string) (<-chan model.WorkInfo, func()) {
	sub := &subscription{ch: make(chan model.WorkInfo, defaultSubscriberBuffer)}

	d.mu.Lock()
	if d.subs[tag] == nil {
		d.subs[tag] = make(map[*subscription]struct{})
	}
	d.subs[tag][sub] = struct{}{}
	d.mu.Unlock()

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		sub.once.Do(func() {
			delete(d.subs[tag], sub)
			if len(d.subs[tag]) == 0 {
				delete(d.subs, tag)
			}
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

func (d *Dispatcher) publish(info model.WorkInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, tag := range info.Tags {
		for sub := range d.subs[tag] {
			select {
			case sub.ch <- info:
			default:
				zlog.Logger.Warn().
					Str("tag", tag).
					Str("id", info.ID.String()).
					Msg("observer is not keeping up, dropping update")
			}
		}
	}
}
