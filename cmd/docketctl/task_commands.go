package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/api"
	"github.com/JaimeStill/docket/internal/audit"
	"github.com/JaimeStill/docket/internal/tasks"
	"github.com/JaimeStill/docket/pkg/formatting"
	"github.com/JaimeStill/docket/pkg/pagination"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var status, assignee, job string
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters tasks.Filters
			if status != "" {
				filters.Status = &status
			}
			if assignee != "" {
				filters.AssignedTo = &assignee
			}
			if job != "" {
				filters.JobID = &job
			}

			return ctx.withDomain(func(d *api.Domain) error {
				result, err := d.Tasks.List(cmd.Context(), pagination.PageRequest{Page: page, PageSize: pageSize}, filters)
				if err != nil {
					return err
				}
				return ctx.render(cmd, result, func(w io.Writer, colorize bool) error {
					if len(result.Data) == 0 {
						_, err := fmt.Fprintln(w, "no tasks")
						return err
					}
					fmt.Fprint(w, renderTaskTable(result.Data, colorize, time.Now()))
					_, err := fmt.Fprintf(w, "page %d of %d (%d tasks)\n", result.Page, result.TotalPages, result.Total)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Filter by assignee")
	cmd.Flags().StringVar(&job, "job", "", "Filter by import job")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Tasks per page")

	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts by status and assignee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(func(d *api.Domain) error {
				stats, err := d.Tasks.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.render(cmd, stats, func(w io.Writer, colorize bool) error {
					fmt.Fprint(w, renderTable(
						[]string{"Status", "Count"},
						statusRows(stats, colorize),
						[]columnAlignment{alignLeft, alignRight},
					))
					if len(stats.ByAssignee) > 0 {
						fmt.Fprint(w, renderTable(
							[]string{"Assignee", "Held"},
							assigneeRows(stats.ByAssignee),
							[]columnAlignment{alignLeft, alignRight},
						))
					}
					_, err := fmt.Fprintf(w, "total: %d\n", stats.Total)
					return err
				})
			})
		},
	}
}

func statusRows(stats *tasks.Stats, colorize bool) [][]string {
	rows := make([][]string, 0, len(tasks.Statuses))
	for _, s := range tasks.Statuses {
		rows = append(rows, []string{statusLabel(s, colorize), strconv.Itoa(stats.ByStatus[s])})
	}
	return rows
}

func assigneeRows(counts map[string]int) [][]string {
	users := make([]string, 0, len(counts))
	for u := range counts {
		users = append(users, u)
	}
	slices.Sort(users)

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u, strconv.Itoa(counts[u])})
	}
	return rows
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <task-id>",
		Short: "Show the audit trail of a task, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			return ctx.withDomain(func(d *api.Domain) error {
				events, err := d.Audit.History(cmd.Context(), id)
				if err != nil {
					return err
				}
				return ctx.render(cmd, events, func(w io.Writer, _ bool) error {
					if len(events) == 0 {
						_, err := fmt.Fprintln(w, "no events")
						return err
					}
					_, err := fmt.Fprint(w, renderEventTable(events, time.Now()))
					return err
				})
			})
		},
	}
}

func renderEventTable(events []audit.Event, now time.Time) string {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{
			e.EventType,
			e.Actor,
			e.OldStatus + " -> " + e.NewStatus,
			formatting.FormatAge(now.Sub(e.CreatedAt)),
		})
	}
	return renderTable(
		[]string{"Event", "Actor", "Transition", "Age"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func newAbandonCommand(ctx *commandContext) *cobra.Command {
	var actor, status, reason string

	cmd := &cobra.Command{
		Use:   "abandon <task-id>",
		Short: "Administratively move a pending or in-progress task to skipped or failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			return ctx.withDomain(func(d *api.Domain) error {
				task, err := d.Tasks.Abandon(cmd.Context(), id, tasks.AbandonCommand{
					Actor:     actor,
					Status:    tasks.Status(status),
					Reason:    reason,
					UserAgent: "docketctl",
				})
				if err != nil {
					return err
				}
				return ctx.render(cmd, task, func(w io.Writer, colorize bool) error {
					_, err := fmt.Fprint(w, renderTaskTable([]tasks.Task{*task}, colorize, time.Now()))
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Operator performing the abandonment")
	cmd.Flags().StringVar(&status, "status", string(tasks.Failed), "Target status (skipped or failed)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit event")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
