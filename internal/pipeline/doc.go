// Package pipeline connects narrative event sources to sinks.
//
// A pipeline is a Source, a chain of Transformers applied left to right, and
// a Sink. Pipelines are described by provider configurations; the Registry
// turns them into instances, sharing one instance between every pipeline
// whose configuration is structurally equal. Run then drives all pipelines
// in one cancellation scope.
//
// ARCHITECTURE:
//
// Resolution:
//   - configurations are keyed by provider name plus sorted config entries
//   - each distinct key is constructed at most once
//   - a pipeline whose source, transformer or sink fails to resolve is
//     skipped; the others still run
//
// Execution:
//   - every pipeline subscribes to its Source before any Source runs
//   - each distinct Source runs exactly once
//   - per pipeline, a puller applies the transformers and hands events to
//     an ordered deliverer through a bounded buffer, so a slow Sink holds
//     up only its own pipeline until the buffer fills
//   - cancelling the context stops everything and is not an error
//
// ERROR HANDLING:
//   - transformer and sink failures are logged and the event is dropped
//   - a failing Source ends the run with its error
package pipeline
