// Package jobs implements an asynchronous job queue drained by a bounded
// worker pool.
//
// A [Job] is created in StatusPending by [Pool.Submit] and delivered
// through an unbounded FIFO [Queue] to exactly one worker, which moves it
// StatusRunning -> StatusDone (with a result) or StatusFailed (with an
// error description). Terminal states are never left, and records are kept
// in memory for the life of the process so [Pool.Inspect] and
// [Pool.Snapshot] can report on finished work.
//
// Handlers are registered per job type with [Pool.Register]; the "sum"
// demo handler ships pre-registered. Handler errors and panics are
// contained: they mark the job failed and never terminate the worker or
// propagate to submitters. There is no retry, cancellation, or
// backpressure — a claimed job runs to completion and the queue accepts
// every submission.
package jobs
