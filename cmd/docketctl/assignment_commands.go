package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/api"
	"github.com/JaimeStill/docket/internal/assignments"
	"github.com/JaimeStill/docket/internal/tasks"
	"github.com/JaimeStill/docket/pkg/formatting"
)

func newAssignCommand(ctx *commandContext) *cobra.Command {
	var users []string
	var quota int

	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Distribute unassigned pending tasks across users (equal split)",
		RunE: func(cmd *cobra.Command, args []string) error {
			command := assignments.EqualSplitCommand{UserIDs: users}
			if cmd.Flags().Changed("quota") {
				command.QuotaPerUser = &quota
			}

			return ctx.withDomain(func(d *api.Domain) error {
				result, err := d.Assignments.EqualSplit(cmd.Context(), command)
				if err != nil {
					return err
				}
				return ctx.render(cmd, result, func(w io.Writer, _ bool) error {
					fmt.Fprintf(w, "%d unassigned pending tasks\n", result.TotalTasks)
					rows := make([][]string, 0, len(result.Assignments))
					for _, a := range result.Assignments {
						rows = append(rows, []string{a.UserID, strconv.Itoa(a.Count)})
					}
					_, err := fmt.Fprint(w, renderTable(
						[]string{"User", "Assigned"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
					return err
				})
			})
		},
	}

	cmd.Flags().StringSliceVarP(&users, "users", "u", nil, "Users to assign to, in order")
	cmd.Flags().IntVarP(&quota, "quota", "q", 0, "Tasks per user (default: spread evenly)")
	_ = cmd.MarkFlagRequired("users")

	return cmd
}

func newClaimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <user-id>",
		Short: "Claim the next task from the pull queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(func(d *api.Domain) error {
				task, err := d.Assignments.ClaimNext(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.render(cmd, assignments.ClaimResult{Task: task}, func(w io.Writer, colorize bool) error {
					if task == nil {
						_, err := fmt.Fprintln(w, "queue is empty")
						return err
					}
					_, err := fmt.Fprint(w, renderTaskTable([]tasks.Task{*task}, colorize, time.Now()))
					return err
				})
			})
		},
	}
}

func renderTaskTable(list []tasks.Task, colorize bool, now time.Time) string {
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		confidence := "-"
		if t.Confidence != nil {
			confidence = strconv.FormatFloat(*t.Confidence, 'f', 2, 64)
		}
		rows = append(rows, []string{
			t.ID.String(),
			t.RequestID,
			statusLabel(t.Status, colorize),
			valueOr(t.AssignedTo, "-"),
			confidence,
			t.Token,
			formatting.FormatAge(now.Sub(t.CreatedAt)),
		})
	}
	return renderTable(
		[]string{"ID", "Request", "Status", "Assignee", "Confidence", "Token", "Age"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}
