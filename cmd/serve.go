package cmd

import (
	"github.com/spf13/cobra"

	"tasnim.dev/cloud-gatekeeper/internal/logging"
	"tasnim.dev/cloud-gatekeeper/internal/server"
)

func NewServeCmd(opts *Options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve Slack callbacks and the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := a.cfg.ListenAddr
			if listen != "" {
				addr = listen
			}
			if a.cfg.Slack.SigningSecret == "" {
				a.log.Warn().Msg("no Slack signing secret configured; callbacks are not verified")
			}

			a.log.Info().
				Str("account", a.aws.AccountID).
				Str("region", a.aws.Region).
				Str("db", a.cfg.DBPath).
				Str("admin_channel", a.cfg.Slack.AdminChannel).
				Str("slack_token", logging.Mask(a.cfg.Slack.BotToken)).
				Msg("starting gatekeeper")

			srv := server.New(a.orchestrator, a.chat,
				server.WithSigningSecret(a.cfg.Slack.SigningSecret),
				server.WithAPIToken(a.cfg.APIToken),
				server.WithMetrics(a.metrics),
				server.WithLogger(logging.Component("server")),
			)
			return srv.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides listen_addr)")

	return cmd
}
