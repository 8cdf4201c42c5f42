package cmd

import (
	"github.com/spf13/cobra"

	"tasnim.dev/cloud-gatekeeper/internal/access"
)

func NewUsersCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(newUsersAddCmd(opts), newUsersListCmd(opts))
	return cmd
}

func newUsersAddCmd(opts *Options) *cobra.Command {
	var u access.User

	cmd := &cobra.Command{
		Use:   "add ID",
		Short: "Add or update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			u.ID = args[0]
			if err := a.users.Upsert(ctx, &u); err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), []*access.User{&u})
			return nil
		},
	}

	cmd.Flags().StringVar(&u.Username, "username", "", "cloud identity name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address")
	cmd.Flags().BoolVar(&u.IsAdmin, "admin", false, "allow deciding access requests")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func newUsersListCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.users.List(ctx)
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), users)
			return nil
		},
	}
}
