package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/types"
)

const (
	defaultRetryDelay  = time.Minute
	defaultSaveTimeout = 10 * time.Second
)

var (
	errInvalidJob      = errors.New("invalid job")
	errInvalidInterval = errors.New("invalid interval")
)

// Orchestrator is the scheduler for recurring pipeline jobs.
// Every finished run is saved to storage
type Orchestrator struct {
	storage storage.Storage
	logger  *slog.Logger

	registeredJobs sync.Map

	q             iq.Queue[scheduledRun]
	queryInterval time.Duration
	retryDelay    time.Duration
	saveTimeout   time.Duration
	qMux          sync.Mutex
}

// New creates a new Orchestrator instance
func New(storage storage.Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		storage:       storage,
		q:             iq.NewQueue[scheduledRun](),
		queryInterval: time.Second,
		retryDelay:    defaultRetryDelay,
		saveTimeout:   defaultSaveTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register registers a new job with the orchestrator.
// The job is immediately queued up for execution
func (o *Orchestrator) Register(j Job) error {
	if j == nil || j.Name() == "" {
		return errInvalidJob
	}

	if j.Interval() <= 0 {
		return errInvalidInterval
	}

	id := xid.New()
	o.registeredJobs.Store(id, j)

	o.logger.Info(
		"registered new job",
		"name", j.Name(),
		"interval", j.Interval().String(),
	)

	o.schedule(time.Now().UTC(), id, j)

	return nil
}

// Start starts the job orchestration loop [BLOCKING]
func (o *Orchestrator) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, 100)

	ticker := time.NewTicker(o.queryInterval)
	defer ticker.Stop()

	// dispatch starts every job that is due
	dispatch := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				next := o.next()
				if next == nil {
					return
				}

				o.logger.Info(
					"starting scheduled run",
					"name", next.job.Name(),
				)

				info := &workerInfo{
					job:   next.job,
					jobID: next.jobID,
					resCh: collectorCh,
				}

				go handleJob(ctx, info)
			}
		}
	}

	dispatch()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator service shut down")

			return nil
		case <-ticker.C:
			dispatch()
		case response := <-collectorCh:
			o.collect(ctx, response)
		}
	}
}

// collect saves a finished run and schedules the next one
func (o *Orchestrator) collect(ctx context.Context, response *workerResponse) {
	now := time.Now().UTC()

	raw, ok := o.registeredJobs.Load(response.jobID)
	if !ok {
		o.logger.Error(
			"unable to load registered job",
			"id", response.jobID.String(),
		)

		return
	}

	job, _ := raw.(Job)

	if response.error != nil {
		o.logger.Error(
			"scheduled run failed",
			"name", job.Name(),
			"retry_in", o.retryDelay.String(),
			"err", response.error,
		)

		o.schedule(now.Add(o.retryDelay), response.jobID, job)

		return
	}

	o.save(ctx, response.run)

	o.schedule(now.Add(job.Interval()), response.jobID, job)
}

func (o *Orchestrator) save(ctx context.Context, run *types.Run) {
	if run == nil {
		return
	}

	saveCtx, cancelFn := context.WithTimeout(ctx, o.saveTimeout)
	defer cancelFn()

	if err := o.storage.SaveRun(saveCtx, run); err != nil {
		o.logger.Error(
			"unable to save run",
			"id", run.ID,
			"err", err,
		)

		return
	}

	o.logger.Info(
		"saved run",
		"id", run.ID,
		"rows", len(run.Rows),
		"grand_total", run.GrandTotal,
		"target", run.Target,
		"dir", run.Directory,
	)
}

// schedule queues a job execution at the given time
func (o *Orchestrator) schedule(
	at time.Time,
	jobID xid.ID,
	job Job,
) {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	o.q.Push(scheduledRun{
		at:    at,
		jobID: jobID,
		job:   job,
	})
}

// next pops the next due job execution, as of the moment of calling
func (o *Orchestrator) next() *scheduledRun {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	if o.q.Len() == 0 {
		return nil // every job is running
	}

	if o.q.Index(0).at.After(time.Now().UTC()) {
		return nil // the earliest job is in the future
	}

	return o.q.PopFront()
}
