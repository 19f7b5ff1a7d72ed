package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/modules/casefile/steps"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/envutil"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

// Executor runs document pipelines on a bounded worker pool and owns the
// case-level follow-up: when the last in-flight document of a case finishes
// and every document of that case is COMPLETED, it synthesizes the case and
// rebuilds the chronology. Synthesis for a given case is single-writer; the
// per-case gate serializes it even when two documents finish back to back.
type Executor struct {
	log    *logger.Logger
	deps   steps.PipelineDeps
	synth  steps.SynthesisDeps
	chron  steps.ChronologyDeps
	events repos.MedicalEventRepo

	sem chan struct{}
	wg  sync.WaitGroup

	mu    sync.Mutex
	cases map[uuid.UUID]*caseState
}

type caseState struct {
	inFlight int
	draining int
	gate     sync.Mutex
}

func New(baseLog *logger.Logger, deps steps.PipelineDeps, synth steps.SynthesisDeps, chron steps.ChronologyDeps) *Executor {
	workers := envutil.Int("DOCUMENT_WORKER_COUNT", 4)
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		log:    baseLog.With("component", "DocumentExecutor"),
		deps:   deps,
		synth:  synth,
		chron:  chron,
		events: chron.Events,
		sem:    make(chan struct{}, workers),
		cases:  make(map[uuid.UUID]*caseState),
	}
}

// Submit queues one document for processing. It returns immediately; the
// pipeline runs on the pool. ctx bounds the whole run, so callers hand in a
// server-lifetime context rather than the request's.
func (e *Executor) Submit(ctx context.Context, caseID, docID uuid.UUID) {
	st := e.enter(caseID)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()

		e.runDocument(ctx, caseID, docID)

		if e.leave(st) {
			e.finishCase(ctx, caseID, st)
			e.release(caseID, st)
		}
	}()
}

// Wait blocks until every submitted document and its case follow-up has
// finished. Used on shutdown.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) enter(caseID uuid.UUID) *caseState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.cases[caseID]
	if !ok {
		st = &caseState{}
		e.cases[caseID] = st
	}
	st.inFlight++
	return st
}

// leave reports whether this goroutine drained the case's in-flight count
// and should attempt the case follow-up.
func (e *Executor) leave(st *caseState) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st.inFlight--
	if st.inFlight == 0 {
		st.draining++
		return true
	}
	return false
}

// release evicts the case's state once nothing references its gate: no
// in-flight documents and no other drainer still inside the follow-up.
// A Submit racing the follow-up finds the entry still in the map, so the
// gate mutex keeps one identity per case for as long as the case is active.
func (e *Executor) release(caseID uuid.UUID, st *caseState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st.draining--
	if st.inFlight == 0 && st.draining == 0 {
		delete(e.cases, caseID)
	}
}

func (e *Executor) runDocument(ctx context.Context, caseID, docID uuid.UUID) {
	log := e.log.With("case_id", caseID.String(), "document_id", docID.String())
	defer func() {
		if r := recover(); r != nil {
			log.Error("document pipeline panic", "panic", r)
			if err := e.deps.Docs.MarkFailed(dbctx.Context{Ctx: ctx}, docID, "internal processing error"); err != nil {
				log.Error("failed to mark panicked document FAILED", "error", err)
			}
		}
	}()
	if err := steps.ProcessDocument(ctx, e.deps, docID); err != nil {
		// Already marked FAILED inside the pipeline; nothing else to do.
		log.Warn("document pipeline returned error", "error", err)
	}
}

// finishCase re-reads document state under the case gate. A document uploaded
// after the drain but before this check re-enters through Submit and will run
// its own follow-up, so acting on a stale snapshot here is harmless: the gate
// plus the fresh read keep the last writer consistent.
func (e *Executor) finishCase(ctx context.Context, caseID uuid.UUID, st *caseState) {
	st.gate.Lock()
	defer st.gate.Unlock()

	log := e.log.With("case_id", caseID.String())
	dbc := dbctx.Context{Ctx: ctx}

	docs, err := e.deps.Docs.GetByCaseID(dbc, caseID)
	if err != nil {
		log.Error("case completion check failed", "error", err)
		return
	}
	if len(docs) == 0 {
		return
	}
	for _, d := range docs {
		if d.ProcessingStatus != types.DocStatusCompleted {
			log.Info("case not ready for synthesis", "document_id", d.ID.String(), "status", d.ProcessingStatus)
			return
		}
	}

	if err := steps.SynthesizeCase(ctx, e.synth, caseID); err != nil {
		log.Error("case synthesis failed", "error", err)
		return
	}

	n, err := e.events.CountByCaseID(dbc, caseID)
	if err != nil {
		log.Error("event count failed", "error", err)
		return
	}
	if n == 0 {
		log.Info("case synthesized, no medical events, skipping chronology")
		return
	}
	if err := steps.BuildChronology(ctx, e.chron, caseID); err != nil {
		log.Error("chronology build failed", "error", err)
		return
	}
	log.Info("case synthesis and chronology completed", "documents", len(docs), "events", n)
}
