// Package retry retries transient failures of remote calls with
// exponential backoff.
//
// [Do] runs an operation until it succeeds, returns an error marked with
// [Fatal], fails a [WithRetryIf] predicate, exhausts its attempts, or its
// context ends. The cluster management client retries server errors with it.
package retry
