package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/whotalks/internal/config"
	"github.com/coral-mesh/whotalks/internal/constants"
	errorsx "github.com/coral-mesh/whotalks/internal/errors"
	"github.com/coral-mesh/whotalks/internal/geo"
	"github.com/coral-mesh/whotalks/internal/investigate"
	"github.com/coral-mesh/whotalks/internal/labels"
	"github.com/coral-mesh/whotalks/internal/logging"
	"github.com/coral-mesh/whotalks/internal/remote"
	"github.com/coral-mesh/whotalks/internal/retry"
	"github.com/coral-mesh/whotalks/internal/sockets"
)

// session is everything one command needs to inspect a host.
type session struct {
	cfg          *config.Config
	target       remote.Target
	logger       zerolog.Logger
	runner       remote.Runner
	labeler      *labels.Labeler
	enricher     *geo.Enricher
	investigator *investigate.Investigator
}

// Close releases the remote connection.
func (s *session) Close() {
	errorsx.DeferClose(s.logger, s.runner, "failed to close remote connection")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	loader := config.NewLoader()

	var (
		cfg *config.Config
		err error
	)
	if flags.configFile != "" {
		cfg, err = loader.LoadFile(flags.configFile, true)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.transport != "" {
		cfg.Remote.Transport = string(flags.transport)
	}
	if flags.maxSessions != 0 {
		cfg.Remote.MaxSessions = flags.maxSessions
	}
	if flags.ephemeralThreshold != 0 {
		cfg.Direction.EphemeralThreshold = flags.ephemeralThreshold
	}
	if flags.tokenFile != "" {
		cfg.Geo.TokenFile = flags.tokenFile
	}
	if flags.noGeo {
		cfg.Geo.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession loads the config, builds the session logger on logOut and
// connects to the target.
func openSession(ctx context.Context, d deps, flags *globalFlags, targetArg string, logOut io.Writer) (*session, error) {
	target, err := remote.ParseTarget(targetArg)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Output = logOut
	logCfg.NoColor = logOut != d.stderr
	sessionID := uuid.New().String()
	logger := logging.New(logCfg).With().Str("session_id", sessionID).Str("target", target.String()).Logger()

	labeler := buildLabeler(ctx, d.resolver, cfg, logger)
	enricher := buildEnricher(cfg, logger)

	transport, err := remote.ParseTransport(cfg.Remote.Transport)
	if err != nil {
		return nil, err
	}

	runner, err := d.open(ctx, target, remoteOptions(cfg, transport, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}

	inv := investigate.New(runner, labeler, enricher, investigate.Options{
		ListingCommand:        cfg.Remote.ListingCommand,
		ProcessListingCommand: cfg.Remote.ProcessListingCommand,
		CmdlineMode:           investigate.CmdlineMode(cfg.Remote.CmdlineMode),
		MaxSessions:           cfg.Remote.MaxSessions,
		GeoConcurrency:        cfg.Geo.Concurrency,
		Policy:                sockets.EphemeralPortPolicy{Threshold: cfg.Direction.EphemeralThreshold},
	}, logger)

	return &session{
		cfg:          cfg,
		target:       target,
		logger:       logger,
		runner:       runner,
		labeler:      labeler,
		enricher:     enricher,
		investigator: inv,
	}, nil
}

// buildLabeler resolves the configured hostnames ahead of the static rules.
func buildLabeler(ctx context.Context, resolver labels.Resolver, cfg *config.Config, logger zerolog.Logger) *labels.Labeler {
	if len(cfg.Labels.Hostnames) == 0 {
		return labels.New(cfg.Labels.Rules)
	}

	dnsCtx, cancel := context.WithTimeout(ctx, constants.DefaultDNSTimeout)
	defer cancel()

	return labels.Build(dnsCtx, resolver, cfg.Labels.Rules, cfg.Labels.Hostnames, logger)
}

// buildEnricher returns an ipinfo.io backed enricher, or a disabled one when
// geolocation is off or the token file is missing.
func buildEnricher(cfg *config.Config, logger zerolog.Logger) *geo.Enricher {
	if !cfg.Geo.Enabled {
		return geo.NewEnricher(nil, logger)
	}

	token, err := geo.LoadToken(cfg.Geo.TokenFile)
	if err != nil {
		event := logger.Warn().Str("path", cfg.Geo.TokenFile)
		if !errors.Is(err, os.ErrNotExist) {
			event = event.Err(err)
		}
		event.Msg("No geolocation token, continuing without locations")
		return geo.NewEnricher(nil, logger)
	}

	client := geo.NewIPInfoClient(logger, cfg.Geo.Endpoint, token, cfg.Geo.Timeout)
	return geo.NewEnricher(client, logger)
}

func remoteOptions(cfg *config.Config, transport remote.Transport, logger zerolog.Logger) remote.Options {
	return remote.Options{
		Transport: transport,
		Exec: remote.ExecConfig{
			Binary:         cfg.Remote.SSHBinary,
			Options:        cfg.Remote.SSHOptions,
			ConnectTimeout: cfg.Remote.DialTimeout,
		},
		Native: remote.NativeConfig{
			KnownHostsFile:        cfg.Remote.KnownHosts,
			InsecureIgnoreHostKey: cfg.Remote.InsecureIgnoreHostKey,
			IdentityFiles:         cfg.Remote.IdentityFiles,
			AgentSocket:           os.Getenv("SSH_AUTH_SOCK"),
			DialTimeout:           cfg.Remote.DialTimeout,
			Retry: retry.Config{
				MaxRetries:     cfg.Remote.DialRetries,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
				Jitter:         0.1,
				OnRetry: func(attempt int, err error) {
					logger.Debug().Err(err).Int("attempt", attempt).Msg("SSH dial failed, retrying")
				},
			},
		},
		MaxSessions: cfg.Remote.MaxSessions,
	}
}
