// Package async provides utilities for parallel task execution with
// error collection.
//
// The [Run] function executes independent operations on a bounded worker
// pool and returns every error once all of them finished. A failing task
// never cancels its siblings.
package async
