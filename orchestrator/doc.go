// Package orchestrator implements the workflow engine that coordinates
// multi-agent execution: workflow definitions are registered as step graphs
// with status-keyed transitions, instances run each on their own goroutine
// under a concurrency limiter, steps resolve their inputs from the instance
// context and their agents from role assignments, and tool failures are
// retried, redirected or escalated to instance failure. Progress is observable
// through typed events on bounded listener queues.
package orchestrator
