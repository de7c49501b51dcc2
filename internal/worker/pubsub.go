package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobTypeProbe       = "probe"
	JobTypeHealthCheck = "health_check"
)

var (
	errMalformedMessage = errors.New("malformed message")
	errUnknownJobType   = errors.New("unknown job type")
)

// PubSubHandler runs probe jobs on demand from Pub/Sub messages, e.g. from a
// Cloud Scheduler trigger.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	probeJob         *ProbeJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	ProbeJob         *ProbeJob
	Logger           zerolog.Logger
}

// ProbeMessage is the JSON payload of a probe request.
type ProbeMessage struct {
	JobType string `json:"job_type"`

	// Targets overrides the job's configured targets for this run.
	Targets []ProbeTarget `json:"targets,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Probe runs are short; a handful in flight is plenty.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 5
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		probeJob:         cfg.ProbeJob,
		logger:           cfg.Logger.With().Str("component", "pubsub").Logger(),
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := processMessage(ctx, h.probeJob, msg.Data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, errMalformedMessage), errors.Is(err, errUnknownJobType):
		// Redelivery cannot fix these
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}

// processMessage decodes a probe request and runs it.
func processMessage(ctx context.Context, job *ProbeJob, data []byte) error {
	var probeMsg ProbeMessage
	if err := json.Unmarshal(data, &probeMsg); err != nil {
		return fmt.Errorf("%w: %w", errMalformedMessage, err)
	}

	switch probeMsg.JobType {
	case JobTypeProbe:
		run := job
		if len(probeMsg.Targets) > 0 {
			run = job.withTargets(probeMsg.Targets)
		}
		result := run.Run(ctx)
		if !result.Healthy() {
			return fmt.Errorf("too many probe failures: %d/%d", result.Failed, result.Total)
		}
		return nil

	case JobTypeHealthCheck:
		// One cheap call verifies connectivity.
		result := job.withTargets([]ProbeTarget{{Operation: OpSubwayLines}}).Run(ctx)
		if result.Failed > 0 {
			return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", errUnknownJobType, probeMsg.JobType)
	}
}
