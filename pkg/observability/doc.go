/*
Package observability provides tools for monitoring a running fuzzing engine.

Everything here attaches through domain.LifecycleHooks, so the engine itself
never depends on a metrics or logging backend.

# Key Entities

  - Metrics: Prometheus collectors for iterations, actions, bytes and faults.
  - Tracker: aggregates hook events into a RunSnapshot of the current run.
  - LogHooks: structured logging of every event.
*/
package observability
