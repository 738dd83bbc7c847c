// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/miranda/internal/apperr"
	"github.com/pdiddy/miranda/internal/ingest"
	"github.com/pdiddy/miranda/pkg/types"
)

// defaultReconcileInterval is how often Run rescans the store for pending
// documents the queue dropped.
const defaultReconcileInterval = 30 * time.Second

// lane is the backlog of one project. At most one of its jobs runs at a
// time, so a project's documents merge in the order they were scheduled.
type lane struct {
	jobs    []ingest.Job
	running bool
}

// dispatcher hands jobs to per-project lanes. It is owned by the Run
// goroutine and never blocks on a single project.
type dispatcher struct {
	s       *Service
	ctx     context.Context
	g       *errgroup.Group
	done    chan ingest.Job
	lanes   map[string]*lane
	queued  map[string]bool // document ids scheduled or running
	running int
}

func (d *dispatcher) schedule(job ingest.Job) bool {
	if d.queued[job.DocumentID] {
		return false
	}
	d.queued[job.DocumentID] = true
	l, ok := d.lanes[job.ProjectID]
	if !ok {
		l = &lane{}
		d.lanes[job.ProjectID] = l
	}
	l.jobs = append(l.jobs, job)
	d.next(job.ProjectID)
	return true
}

// next starts the head job of the project's lane when the lane is idle.
func (d *dispatcher) next(projectID string) {
	l := d.lanes[projectID]
	if l.running {
		return
	}
	if len(l.jobs) == 0 {
		delete(d.lanes, projectID)
		return
	}
	job := l.jobs[0]
	l.jobs = l.jobs[1:]
	l.running = true
	d.running++
	d.g.Go(func() error {
		d.s.indexJob(d.ctx, job)
		d.done <- job
		return nil
	})
}

func (d *dispatcher) finish(job ingest.Job) {
	d.running--
	delete(d.queued, job.DocumentID)
	d.lanes[job.ProjectID].running = false
	d.next(job.ProjectID)
}

func (d *dispatcher) idle() bool {
	return d.running == 0 && len(d.lanes) == 0
}

// reconcile schedules every pending document not already in a lane.
func (d *dispatcher) reconcile() int {
	if !d.s.embedderReady() {
		return 0
	}
	n := 0
	for _, doc := range d.s.store.PendingDocuments(d.ctx) {
		if d.schedule(ingest.Job{ProjectID: doc.ProjectID, DocumentID: doc.ID}) {
			n++
		}
	}
	if n > 0 {
		d.s.log.Info("pending documents scheduled", "count", n)
	}
	return n
}

// Run consumes the ingestion queue until ctx is cancelled, or until the
// queue is closed and every scheduled job has finished. Each project has its
// own lane so its documents are merged in queue order while different
// projects proceed in parallel. Documents left pending by a restart or a
// full queue are picked up at start and on every reconcile tick.
func (s *Service) Run(ctx context.Context, queue *ingest.Queue) error {
	var g errgroup.Group
	d := &dispatcher{
		s:      s,
		ctx:    ctx,
		g:      &g,
		done:   make(chan ingest.Job),
		lanes:  make(map[string]*lane),
		queued: make(map[string]bool),
	}

	ticker := time.NewTicker(s.cfg.ReconcileInterval)
	defer ticker.Stop()
	d.reconcile()

	jobs := queue.Jobs()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case job, ok := <-jobs:
			if !ok {
				jobs = nil
				ticker.Stop()
				if d.idle() {
					break loop
				}
				continue
			}
			d.schedule(job)
		case job := <-d.done:
			d.finish(job)
			if jobs == nil && d.idle() {
				break loop
			}
		case <-ticker.C:
			d.reconcile()
		}
	}

	// Running jobs observe ctx; wait for them to report back.
	for d.running > 0 {
		<-d.done
		d.running--
	}
	return g.Wait()
}

func (s *Service) indexJob(ctx context.Context, job ingest.Job) {
	if ctx.Err() != nil {
		return
	}
	err := s.IndexDocument(ctx, job.ProjectID, job.DocumentID)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindNotFound):
		s.log.Debug("skipping job for removed document",
			"project_id", job.ProjectID, "document_id", job.DocumentID)
	case apperr.Is(err, apperr.KindConfiguration):
		s.log.Warn("document left pending", "project_id", job.ProjectID,
			"document_id", job.DocumentID, "error", err)
	default:
		// Already recorded on the document by IndexDocument.
	}
}

// Summary counts the outcome of IndexPending.
type Summary struct {
	Indexed int `json:"indexed" yaml:"indexed"`
	Failed  int `json:"failed" yaml:"failed"`
}

// IndexPending indexes the pending documents of projectID synchronously, or
// of every project when projectID is empty. Per-document failures are
// counted; a configuration failure or cancellation stops the run.
func (s *Service) IndexPending(ctx context.Context, projectID string) (Summary, error) {
	var docs []types.Document
	if projectID == "" {
		docs = s.store.PendingDocuments(ctx)
	} else {
		all, err := s.store.ListDocuments(ctx, projectID, "")
		if err != nil {
			return Summary{}, err
		}
		for _, d := range all {
			if d.Status == types.StatusPending {
				docs = append(docs, d)
			}
		}
	}

	var sum Summary
	for _, d := range docs {
		err := s.IndexDocument(ctx, d.ProjectID, d.ID)
		switch {
		case err == nil:
			sum.Indexed++
		case apperr.Is(err, apperr.KindConfiguration), ctx.Err() != nil:
			return sum, err
		case apperr.Is(err, apperr.KindIndexing):
			sum.Failed++
		default:
			return sum, err
		}
	}
	return sum, nil
}
