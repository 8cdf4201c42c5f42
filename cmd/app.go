package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	awsclient "tasnim.dev/cloud-gatekeeper/internal/aws"
	"tasnim.dev/cloud-gatekeeper/internal/config"
	"tasnim.dev/cloud-gatekeeper/internal/events"
	"tasnim.dev/cloud-gatekeeper/internal/logging"
	"tasnim.dev/cloud-gatekeeper/internal/metrics"
	"tasnim.dev/cloud-gatekeeper/internal/notify"
	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
	"tasnim.dev/cloud-gatekeeper/internal/provision"
	"tasnim.dev/cloud-gatekeeper/internal/resolver"
	"tasnim.dev/cloud-gatekeeper/internal/store"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Profile    string
	Region     string
	DBPath     string
}

// Register adds the shared flags to the root command.
func (o *Options) Register(root *cobra.Command) {
	root.PersistentFlags().StringVar(&o.ConfigPath, "config", "", "config file (default ~/.config/cloud-gatekeeper/config.yaml)")
	root.PersistentFlags().StringVarP(&o.Profile, "profile", "p", "", "AWS profile to use")
	root.PersistentFlags().StringVarP(&o.Region, "region", "r", "", "AWS region to use")
	root.PersistentFlags().StringVar(&o.DBPath, "db", "", "path to the gatekeeper database")
}

// loadConfig reads the config file, applies flag overrides and initializes
// logging.
func (o *Options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.DefaultProfile, cfg.DefaultRegion = cfg.Merge(o.Profile, o.Region)
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}

	logCfg := logging.DefaultConfig()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = cfg.Log.Format
	}
	logging.Init(logCfg)
	return cfg, nil
}

// app holds the wired components for one command invocation.
type app struct {
	cfg          *config.Config
	log          zerolog.Logger
	db           *store.DB
	requests     *store.RequestRepository
	users        *store.UserRepository
	outcomes     *store.OutcomeRepository
	metrics      *metrics.Metrics
	chat         notify.Chat
	aws          *awsclient.ServiceClient
	resolver     *resolver.Resolver
	orchestrator *orchestrator.Orchestrator
}

func (a *app) Close() error {
	return a.db.Close()
}

// openStore wires only the database. Commands that read state or manage
// users need nothing else.
func (o *Options) openStore(ctx context.Context) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      logging.Logger,
		db:       db,
		requests: store.NewRequestRepository(db),
		users:    store.NewUserRepository(db),
		outcomes: store.NewOutcomeRepository(db),
		metrics:  metrics.New(),
	}
	a.orchestrator = orchestrator.New(a.requests, a.users, a.outcomes, events.NewBus(logging.Component("bus")),
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithLogger(logging.Component("orchestrator")),
	)
	return a, nil
}

// openResolver adds the AWS clients and the resolver.
func (o *Options) openResolver(ctx context.Context) (*app, error) {
	a, err := o.openStore(ctx)
	if err != nil {
		return nil, err
	}

	client, err := awsclient.NewServiceClient(ctx, a.cfg.DefaultProfile, a.cfg.DefaultRegion, logging.Component("aws"))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("initializing AWS client: %w", err)
	}
	a.aws = client
	a.resolver = resolver.New(client.Discovery,
		resolver.WithTimeout(a.cfg.DiscoveryTimeout()),
		resolver.WithLogger(logging.Component("resolver")),
		resolver.WithObserver(func(s resolver.Strategy) { a.metrics.ObserveResolution(string(s)) }),
	)
	return a, nil
}

// open wires everything: store, AWS, chat and the side-effect subscribers.
func (o *Options) open(ctx context.Context) (*app, error) {
	a, err := o.openResolver(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if a.cfg.Slack.BotToken != "" {
		a.chat = notify.NewSlackChat(a.cfg.Slack.BotToken, a.cfg.Slack.APIURL)
	} else {
		a.log.Warn().Msg("no Slack bot token configured; notifications are only logged")
		a.chat = logChat{log: logging.Component("chat")}
	}

	provisioner := provision.New(a.aws.IAM, a.resolver,
		provision.WithTimeout(a.cfg.IdentityTimeout()),
		provision.WithDefaultPermissions(defaultPermissions(a.cfg.DefaultPermissions)),
		provision.WithPolicyPrefix(a.cfg.PolicyPrefix),
		provision.WithLogger(logging.Component("provision")),
	)
	dispatcher := notify.NewDispatcher(a.chat,
		notify.WithTimeout(a.cfg.NotificationTimeout()),
		notify.WithLogger(logging.Component("notify")),
	)

	admins := a.cfg.Slack.AdminChannel
	bus := events.NewBus(logging.Component("bus"),
		orchestrator.NewNotificationSubscriber(a.requests, dispatcher, admins),
		orchestrator.NewProvisioningSubscriber(a.requests, a.users, provisioner, dispatcher, admins, logging.Component("provisioning")),
	)
	a.orchestrator = orchestrator.New(a.requests, a.users, a.outcomes, bus,
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithLogger(logging.Component("orchestrator")),
	)
	return a, nil
}

// defaultPermissions overlays configured per-kind actions on the built-in
// defaults.
func defaultPermissions(cfg map[string][]string) map[resolver.Kind][]string {
	out := make(map[resolver.Kind][]string, len(provision.DefaultPermissions)+len(cfg))
	for kind, actions := range provision.DefaultPermissions {
		out[kind] = actions
	}
	for kind, actions := range cfg {
		out[resolver.Kind(kind)] = actions
	}
	return out
}

// logChat stands in for Slack when no bot token is configured.
type logChat struct {
	log zerolog.Logger
}

func (c logChat) Send(ctx context.Context, channel, text string, interactive *notify.Interactive) error {
	c.log.Info().Str("channel", channel).Bool("interactive", interactive != nil).Msg(text)
	return nil
}
