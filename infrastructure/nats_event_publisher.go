package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kzcasino/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const sourceService = "kzcasino"

// MessagePublisher sends raw bytes to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject, msgID string, data []byte) error
}

// NATSEventPublisher forwards committed domain events from the bus to NATS
type NATSEventPublisher struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	now           func() time.Time
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(publisher MessagePublisher, subjectMapper *EventSubjectMapper) *NATSEventPublisher {
	return &NATSEventPublisher{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		now:           time.Now,
	}
}

// Attach subscribes the publisher to every event type on the bus
func (p *NATSEventPublisher) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := p.Publish(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to forward event to NATS")
		}
	})
}

// Publish wraps the event in an envelope and publishes it on its subject
func (p *NATSEventPublisher) Publish(ctx context.Context, event events.Event) error {
	eventID := uuid.New().String()

	data, err := p.encodeEnvelope(eventID, event)
	if err != nil {
		return err
	}

	subject := p.subjectMapper.MapEventToSubject(event)
	if err := p.publisher.Publish(ctx, subject, eventID, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   eventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// encodeEnvelope renders {event_id, event_type, timestamp, source_service, payload} as protojson
func (p *NATSEventPublisher) encodeEnvelope(eventID string, event events.Event) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode event payload: %w", err)
	}
	payload, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}

	ts := timestamppb.New(p.now())
	envelope := &structpb.Struct{Fields: map[string]*structpb.Value{
		"event_id":       structpb.NewStringValue(eventID),
		"event_type":     structpb.NewStringValue(string(event.Type())),
		"timestamp":      structpb.NewStringValue(ts.AsTime().Format(time.RFC3339Nano)),
		"source_service": structpb.NewStringValue(sourceService),
		"payload":        structpb.NewStructValue(payload),
	}}

	data, err := protojson.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}
