package ingest

import (
	"context"
	"time"

	"github.com/sig-0/centavo/storage/types"
)

// Job is a single recurring pipeline job
type Job interface {
	// Name returns the human-readable name of the job
	Name() string

	// Interval returns the interval at which the job should run
	Interval() time.Duration

	// Run is the job's main work, yielding a finished pipeline run
	Run(context.Context) (*types.Run, error)
}

// Runner runs the pipeline, writing artifacts under the output root
type Runner interface {
	Run(ctx context.Context, limit int, outputRoot string) (*types.Run, error)
}

// PipelineJob runs the pipeline on a fixed interval
type PipelineJob struct {
	runner     Runner
	outputRoot string
	limit      int
	interval   time.Duration
}

// NewPipelineJob creates a new pipeline job
func NewPipelineJob(
	runner Runner,
	limit int,
	outputRoot string,
	interval time.Duration,
) *PipelineJob {
	return &PipelineJob{
		runner:     runner,
		limit:      limit,
		outputRoot: outputRoot,
		interval:   interval,
	}
}

func (j *PipelineJob) Name() string {
	return "population-fx"
}

func (j *PipelineJob) Interval() time.Duration {
	return j.interval
}

func (j *PipelineJob) Run(ctx context.Context) (*types.Run, error) {
	return j.runner.Run(ctx, j.limit, j.outputRoot)
}
