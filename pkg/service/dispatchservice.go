package service

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/dispatch"
	"github.com/talkbase-io/go-chatpipe/pkg/queue"
)

// DispatchServiceConfig holds configuration for the outbound dispatch
// process.
type DispatchServiceConfig struct {
	HTTPPort  string
	ProjectID string
	// CredentialsFile optionally points at a service account JSON file.
	CredentialsFile string
	Worker          dispatch.WorkerConfig
}

// DispatchService composes the probe server, the per-channel queue
// consumers and the dispatch fleet into one long-lived process. /readyz
// reports unavailable until the fleet is consuming on every channel.
type DispatchService struct {
	health *HealthServer
	fleet  *dispatch.Fleet
	client *pubsub.Client
	logger zerolog.Logger
}

// NewDispatchService binds one durable queue consumer per channel and wires
// each to its sender. Every dispatch channel must have a sender configured.
func NewDispatchService(
	ctx context.Context,
	cfg *DispatchServiceConfig,
	senders map[chatmodel.Channel]dispatch.Sender,
	logger zerolog.Logger,
) (*DispatchService, error) {
	client, err := queue.NewPubsubClient(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	consumers := make(map[chatmodel.Channel]queue.Consumer)
	for _, channel := range chatmodel.DispatchChannels() {
		queueName, _ := chatmodel.OutboundQueue(channel)
		consumerCfg := queue.LoadPubsubConsumerDefaults(queueName)
		consumer, err := queue.NewPubsubConsumer(ctx, consumerCfg, client, logger)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("bind queue %s: %w", queueName, err)
		}
		consumers[channel] = consumer
	}

	fleet, err := dispatch.NewFleet(cfg.Worker, consumers, senders, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &DispatchService{
		health: NewHealthServer(logger, cfg.HTTPPort, fleet.Ready),
		fleet:  fleet,
		client: client,
		logger: logger.With().Str("service", "DispatchService").Logger(),
	}, nil
}

// Start brings up the probe surface and the dispatch fleet.
func (s *DispatchService) Start(ctx context.Context) error {
	if err := s.health.Start(); err != nil {
		return err
	}
	if err := s.fleet.Start(ctx); err != nil {
		return errors.Join(err, s.health.Shutdown(ctx))
	}
	s.logger.Info().Msg("Dispatch service started.")
	return nil
}

// Addr returns the probe server's bound address.
func (s *DispatchService) Addr() string { return s.health.Addr() }

// Shutdown stops the fleet, the Pub/Sub client, and the probe surface,
// collecting errors so each stage always runs.
func (s *DispatchService) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.fleet.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
	}
	if err := s.health.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info().Msg("Dispatch service stopped.")
	return nil
}
