package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
)

func NewRequestCmd(opts *Options) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "request MESSAGE...",
		Short: "Submit an access request on behalf of a user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := a.orchestrator.Intake(ctx, user, strings.Join(args, " "))
			if err != nil {
				return err
			}
			outcomes, err := a.outcomes.ListOutcomes(ctx, req.ID)
			if err != nil {
				return err
			}
			printRequest(cmd.OutOrStdout(), req, outcomes)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "requester chat user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func NewApproveCmd(opts *Options) *cobra.Command {
	return newDecideCmd(opts, orchestrator.ActionApprove)
}

func NewRejectCmd(opts *Options) *cobra.Command {
	return newDecideCmd(opts, orchestrator.ActionReject)
}

func newDecideCmd(opts *Options, action orchestrator.Action) *cobra.Command {
	var approver string
	var reason string

	use, short := "approve ID", "Approve a pending request and provision access"
	if action == orchestrator.ActionReject {
		use, short = "reject ID", "Reject a pending request"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := a.orchestrator.Decide(ctx, orchestrator.DecideInput{
				RequestID:  args[0],
				ApproverID: approver,
				Action:     action,
				Reason:     reason,
			})
			if err != nil {
				return fmt.Errorf("%s %s: %w", strings.ToLower(string(action)), args[0], err)
			}

			outcomes, err := a.outcomes.ListOutcomes(ctx, req.ID)
			if err != nil {
				return err
			}
			printRequest(cmd.OutOrStdout(), req, outcomes)
			return nil
		},
	}

	cmd.Flags().StringVar(&approver, "as", "", "approver chat user id")
	_ = cmd.MarkFlagRequired("as")
	if action == orchestrator.ActionReject {
		cmd.Flags().StringVar(&reason, "reason", "", "rejection reason shown to the requester")
	}

	return cmd
}

func NewPendingCmd(opts *Options) *cobra.Command {
	var viewer string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending access requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			reqs, err := a.orchestrator.ListPending(ctx, viewer)
			if err != nil {
				return err
			}
			printRequests(cmd.OutOrStdout(), reqs)
			return nil
		},
	}

	cmd.Flags().StringVar(&viewer, "as", "", "admin chat user id")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func NewUnprovisionedCmd(opts *Options) *cobra.Command {
	var viewer string

	cmd := &cobra.Command{
		Use:   "unprovisioned",
		Short: "List approved requests whose access was never granted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.orchestrator.ListUnprovisioned(ctx, viewer)
			if err != nil {
				return err
			}
			printUnprovisioned(cmd.OutOrStdout(), items)
			return nil
		},
	}

	cmd.Flags().StringVar(&viewer, "as", "", "admin chat user id")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}
