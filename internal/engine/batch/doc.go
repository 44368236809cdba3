// Package batch provides the concurrency substrate used by the record engine.
//
// It offers two primitives:
//   - Dispatcher fans a slice of items out to one goroutine per item, optionally
//     bounded, and joins on every unit before returning. A failing unit never
//     cancels its siblings.
//   - ProcessChunks walks a slice in fixed-size chunks sequentially, for bulk
//     operations that must bound memory rather than maximize parallelism.
//
// Progress tracks per-unit outcomes (succeeded, skipped, failed) for UI updates
// and logging.
package batch
