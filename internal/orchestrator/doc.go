// Package orchestrator is the facade over the backup core. It owns
// operation ordering: per-repository serialization via an in-process
// keyed lock registry plus a file lock for cross-process exclusion,
// source validation and preflight before any engine spawn, version
// reservation before the engine call and recording after success.
//
// Every public operation returns a result value; engine failures live
// in the result, and Go errors are reserved for configuration and
// infrastructure problems that prevented the attempt entirely.
package orchestrator
