// Package queue runs prefetch synthesis on a single background worker.
// The worker accepts one task at a time and hands back a Future that the
// caller waits on before using the task's result.
package queue
