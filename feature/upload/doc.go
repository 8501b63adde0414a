// Package upload publishes missing books to the channel, one at a time.
//
// An Orchestrator runs a batch of upload tasks sequentially. Every task
// moves through Pending → Sending → {Succeeded | Retrying → Sending | Failed}:
//
//   - a task whose key is already indexed is skipped, so re-running a batch
//     never publishes a book twice;
//   - a missing or empty file fails the task without contacting the channel;
//   - timeouts, network errors, flood-waits and server errors are retried
//     with exponential backoff, honoring the wait the server asks for;
//   - any other error, or an exhausted retry budget, fails the task and the
//     batch moves on.
//
// A successful send is written to the channel index and saved before the
// next task starts. If that save fails the batch stops: continuing would
// publish books the index does not know about.
//
// Consecutive sends are spaced by a minimum interval, and by a longer
// cool-down after the server throttled us. Cancellation is honored between
// tasks and during waits; a send already in flight is always completed and
// recorded.
package upload
