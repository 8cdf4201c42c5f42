package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"tasnim.dev/cloud-gatekeeper/cmd"
)

func main() {
	opts := &cmd.Options{}
	rootCmd := &cobra.Command{
		Use:          "cloud-gatekeeper",
		Short:        "Chat-driven approval of temporary cloud access",
		SilenceUsage: true,
	}
	opts.Register(rootCmd)

	rootCmd.AddCommand(cmd.NewServeCmd(opts))
	rootCmd.AddCommand(cmd.NewRequestCmd(opts))
	rootCmd.AddCommand(cmd.NewApproveCmd(opts))
	rootCmd.AddCommand(cmd.NewRejectCmd(opts))
	rootCmd.AddCommand(cmd.NewPendingCmd(opts))
	rootCmd.AddCommand(cmd.NewUnprovisionedCmd(opts))
	rootCmd.AddCommand(cmd.NewResolveCmd(opts))
	rootCmd.AddCommand(cmd.NewUsersCmd(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
