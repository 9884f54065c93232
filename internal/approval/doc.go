// Package approval implements the task status-transition approval engine.
//
// A status change requested on a task is checked against the transition
// graph and, when the task has stakeholders, parked as a PendingApproval
// with one ballot per member of a roster snapshot. The change is applied
// only after every ballot is approved; the first rejection closes the
// approval without touching the task. While an approval is open the task
// is locked against edits, deletion and further transition requests.
//
// Every operation runs as a single store transaction. Transactions that
// lose a race with a concurrent writer are retried a bounded number of
// times, and notifications are emitted only after a commit.
package approval
