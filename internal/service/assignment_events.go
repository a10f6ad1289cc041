package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/observability"
)

const assignmentEventBufferSize = 32

// AssignmentEventBus fans assignment lifecycle events out to live monitors, across nodes when
// redis or NATS are configured.
type AssignmentEventBus interface {
	Publish(ctx context.Context, event dto.AssignmentEvent)
	Subscribe(assessmentID uint) (<-chan dto.AssignmentEvent, func())
	Start(ctx context.Context)
}

type assignmentEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *assignmentBroker
	nodeID       string
}

type assignmentEnvelope struct {
	Source string              `json:"source"`
	Event  dto.AssignmentEvent `json:"event"`
}

type assignmentBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.AssignmentEvent]struct{}
}

// NewAssignmentEventBus constructs the bus. redisClient and natsConn are optional.
func NewAssignmentEventBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) AssignmentEventBus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &assignmentEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "assignment_events").Logger(),
		broker: &assignmentBroker{
			subscribers: make(map[uint]map[chan dto.AssignmentEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (b *assignmentEventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Publish delivers locally first, then to the remote transports. Transport failures are logged only.
func (b *assignmentEventBus) Publish(ctx context.Context, event dto.AssignmentEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	b.broker.broadcast(event)
	observability.EventsPublished().WithLabelValues("local").Inc()

	payload, err := json.Marshal(assignmentEnvelope{Source: b.nodeID, Event: event})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode assignment event")
		return
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish assignment event to redis")
		} else {
			observability.EventsPublished().WithLabelValues("redis").Inc()
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish assignment event to nats")
		} else {
			observability.EventsPublished().WithLabelValues("nats").Inc()
		}
	}
}

func (b *assignmentEventBus) Subscribe(assessmentID uint) (<-chan dto.AssignmentEvent, func()) {
	channel := make(chan dto.AssignmentEvent, assignmentEventBufferSize)
	b.broker.subscribe(assessmentID, channel)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { b.broker.unsubscribe(assessmentID, channel) })
	}
	return channel, cleanup
}

func (b *assignmentEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("assignment event redis subscription closed")
			return
		}
		b.handle([]byte(msg.Payload))
	}
}

func (b *assignmentEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handle(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to assignment events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain assignment events subscription")
		}
	}()
}

// handle re-broadcasts events produced by other nodes.
func (b *assignmentEventBus) handle(payload []byte) {
	var envelope assignmentEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid assignment event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	b.broker.broadcast(envelope.Event)
}

func (b *assignmentBroker) subscribe(assessmentID uint, ch chan dto.AssignmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[assessmentID]; !exists {
		b.subscribers[assessmentID] = make(map[chan dto.AssignmentEvent]struct{})
	}
	b.subscribers[assessmentID][ch] = struct{}{}
}

func (b *assignmentBroker) unsubscribe(assessmentID uint, ch chan dto.AssignmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[assessmentID]; ok {
		if _, present := subscribers[ch]; present {
			delete(subscribers, ch)
			close(ch)
		}
		if len(subscribers) == 0 {
			delete(b.subscribers, assessmentID)
		}
	}
}

func (b *assignmentBroker) broadcast(event dto.AssignmentEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.AssessmentID] {
		select {
		case ch <- event:
		default:
		}
	}
}
