package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Worker processes queued jobs one at a time.
type Worker struct {
	proc *Processor
	log  *slog.Logger
}

func NewWorker(proc *Processor, log *slog.Logger) *Worker {
	return &Worker{proc: proc, log: log}
}

// Process runs one job to a terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	start := time.Now()

	res, err := w.proc.run(ctx, job.Filename, job.FileData(), job.SetStatus)
	if err != nil {
		log.Error("job failed", "status", job.Snapshot().Status, "error", err)
		job.Fail(err)
		return
	}
	job.Complete(res)
	log.Info("job completed", "root_id", res.RootID, "images", res.Written, "duration", time.Since(start))
}
