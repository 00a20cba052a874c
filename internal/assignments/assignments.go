// Package assignments implements the assignment engine. Both strategies,
// batch equal-split and the pull queue, claim through a single primitive that
// sets assigned_to and appends the assignment record in one transaction.
package assignments

import "github.com/JaimeStill/docket/internal/tasks"

// EqualSplitCommand distributes unassigned pending tasks across users in order.
// A nil QuotaPerUser spreads the queue evenly, rounding up.
type EqualSplitCommand struct {
	UserIDs      []string `json:"user_ids"`
	QuotaPerUser *int     `json:"quota_per_user,omitempty"`
}

// UserCount is the number of tasks a user received from one equal-split run.
type UserCount struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// EqualSplitResult reports the unassigned supply seen at the start of the run
// and what each user received.
type EqualSplitResult struct {
	TotalTasks  int         `json:"total_tasks"`
	Assignments []UserCount `json:"assignments"`
}

// ClaimCommand identifies the caller of a claim.
type ClaimCommand struct {
	UserID string `json:"user_id"`
}

// ClaimTaskCommand claims a specific task.
type ClaimTaskCommand struct {
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`
}

// ClaimResult wraps a pull-queue claim. Task is nil when the queue is empty.
type ClaimResult struct {
	Task *tasks.Task `json:"task"`
}
