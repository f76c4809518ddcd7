package ingest

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/centavo/storage/types"
)

// scheduledRun is a single scheduled job execution
type scheduledRun struct {
	at    time.Time
	job   Job
	jobID xid.ID
}

// Less sorts scheduled runs by their due time (earliest first)
func (a scheduledRun) Less(b scheduledRun) bool {
	return a.at.Before(b.at)
}

// workerInfo is the work context for the job routine
type workerInfo struct {
	job   Job
	resCh chan<- *workerResponse
	jobID xid.ID
}

// workerResponse is the job routine response
type workerResponse struct {
	error error      // encountered error, if any
	run   *types.Run // the finished run
	jobID xid.ID
}

// handleJob executes the job
func handleJob(
	ctx context.Context,
	info *workerInfo,
) {
	run, err := info.job.Run(ctx)

	response := &workerResponse{
		error: err,
		run:   run,
		jobID: info.jobID,
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}
