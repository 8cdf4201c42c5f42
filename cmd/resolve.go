package cmd

import (
	"github.com/spf13/cobra"
)

func NewResolveCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve PROJECT",
		Short: "Show which cloud resource a project name resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.openResolver(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.resolver.Resolve(ctx, args[0])
			printResolved(cmd.OutOrStdout(), args[0], res, a.aws.AccountID)
			return nil
		},
	}
}
