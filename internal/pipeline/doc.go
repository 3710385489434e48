// Package pipeline runs a task as three engine-managed stages:
//
//	validate -> execute -> structure
//
// Every stage is a Temporal activity with its own timeout and retry budget.
// The workflow only chains them and never touches processes or the network,
// so its code stays deterministic across replays.
//
// Failures crossing the engine boundary are temporal.ApplicationError values
// typed InvalidInput, ExecutionError or StructuringError. InvalidInput is
// never retried.
//
// The same activities run without the engine in Local, which is what the
// run and scan commands of the CLI use.
package pipeline
