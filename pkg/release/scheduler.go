// SPDX-License-Identifier: MPL-2.0

package release

import (
	"context"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"

	"relpak/pkg/archive"
)

type (
	// Job bundles one descriptor's file set with its target output path and
	// chosen archiver backend. Each job owns its file set and archiver
	// instance; nothing is shared between jobs.
	Job struct {
		Descriptor Descriptor
		Files      []archive.File
		Dest       string
		Archiver   archive.Archiver
	}

	// Result is the outcome of one job. Results are returned in submission
	// order regardless of completion order.
	Result struct {
		Descriptor Descriptor
		Dest       string
		Err        error
	}

	// jobProgress is one fractional progress sample from a running job.
	jobProgress struct {
		job  int
		frac float64
	}
)

// almostDone caps the progress a job can claim through its archiver callback.
// A backend reports 1.0 once all payload bytes are copied, but the stream
// close and the atomic rename can still fail after that; the final share is
// credited only on the worker's success path.
const almostDone = 0.999

// weight returns the job's share of total work: its byte size, or at least 1
// so zero-byte jobs still contribute.
func (j Job) weight() int64 {
	var total int64
	for _, f := range j.Files {
		total += f.Size
	}
	if total < 1 {
		total = 1
	}
	return total
}

// RunJobs executes jobs on a bounded worker pool of at most parallelism
// concurrent workers (0 or negative means the number of CPUs). Jobs are
// admitted in FIFO order over the submitted sequence; as soon as a running
// slot frees, the next queued job starts.
//
// Aggregate progress is the byte-weighted average of per-job progress.
// Workers never touch the shared aggregate: they send samples to a single
// collector goroutine that is the sole owner of the progress state, which
// keeps the reported value monotonic. The aggregate reaches 1.0 exactly when
// every job succeeded.
//
// One job's failure does not cancel running or queued siblings; every job
// runs and every result is collected. The caller decides overall success.
func RunJobs(ctx context.Context, jobs []Job, parallelism int, progress func(float64), logger *log.Logger) []Result {
	if len(jobs) == 0 {
		return nil
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(jobs) {
		parallelism = len(jobs)
	}

	weights := make([]int64, len(jobs))
	var totalWeight int64
	for i, j := range jobs {
		weights[i] = j.weight()
		totalWeight += weights[i]
	}

	updates := make(chan jobProgress)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		fracs := make([]float64, len(jobs))
		reported := 0.0
		for u := range updates {
			f := u.frac
			if f < 0 {
				f = 0
			}
			if f > 1 {
				f = 1
			}
			// Per-job progress never moves backwards either.
			if f <= fracs[u.job] {
				continue
			}
			fracs[u.job] = f

			var weighted float64
			for i, frac := range fracs {
				weighted += frac * float64(weights[i])
			}
			agg := weighted / float64(totalWeight)
			if agg > reported {
				reported = agg
				if progress != nil {
					progress(reported)
				}
			}
		}
	}()

	queue := make(chan int)
	results := make([]Result, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				job := jobs[i]
				if logger != nil {
					logger.Debug("starting compression job", "package", job.Descriptor.FileName(), "files", len(job.Files))
				}

				idx := i
				err := job.Archiver.Archive(ctx, job.Files, job.Dest, func(f float64) {
					if f > almostDone {
						f = almostDone
					}
					updates <- jobProgress{job: idx, frac: f}
				})
				if err == nil {
					updates <- jobProgress{job: idx, frac: 1}
				}

				results[i] = Result{Descriptor: job.Descriptor, Dest: job.Dest, Err: err}
				if logger != nil {
					if err != nil {
						logger.Error("compression job failed", "package", job.Descriptor.FileName(), "err", err)
					} else {
						logger.Debug("compression job finished", "package", job.Descriptor.FileName())
					}
				}
			}
		}()
	}

	for i := range jobs {
		queue <- i
	}
	close(queue)
	wg.Wait()

	close(updates)
	<-collectorDone

	return results
}
