package infrastructure

import (
	"strings"

	"kzcasino/events"
)

// StreamName is the JetStream stream carrying every forwarded event
const StreamName = "casino_events"

const unknownSubjectPrefix = "casino.unknown."

var subjects = map[events.EventType]string{
	events.EventTypeBalanceChange:      "casino.accounts.balance_changed",
	events.EventTypeAccountCreated:     "casino.accounts.created",
	events.EventTypeGamePlayed:         "casino.games.played",
	events.EventTypePredictionResolved: "casino.predictions.resolved",
	events.EventTypeLoanStateChange:    "casino.loans.state_changed",
	events.EventTypeLoanOverdue:        "casino.loans.overdue",
	events.EventTypeDuelResolved:       "casino.duels.resolved",
	events.EventTypeParamChanged:       "casino.params.changed",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjects[event.Type()]; ok {
		return subject
	}
	return unknownSubjectPrefix + string(event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjects {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(strings.TrimPrefix(subject, unknownSubjectPrefix))
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	all := make([]string, 0, len(events.AllEventTypes))
	for _, eventType := range events.AllEventTypes {
		all = append(all, subjects[eventType])
	}
	return all
}
