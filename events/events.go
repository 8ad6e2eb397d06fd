package events

import (
	"context"
	"sync"

	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeAccountCreated     EventType = "account_created"
	EventTypeGamePlayed         EventType = "game_played"
	EventTypePredictionResolved EventType = "prediction_resolved"
	EventTypeLoanStateChange    EventType = "loan_state_change"
	EventTypeLoanOverdue        EventType = "loan_overdue"
	EventTypeDuelResolved       EventType = "duel_resolved"
	EventTypeParamChanged       EventType = "param_changed"
)

// AllEventTypes lists every event type the core publishes
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeAccountCreated,
	EventTypeGamePlayed,
	EventTypePredictionResolved,
	EventTypeLoanStateChange,
	EventTypeLoanOverdue,
	EventTypeDuelResolved,
	EventTypeParamChanged,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64                  `json:"user_id"`
	OldBalance      int64                  `json:"old_balance"`
	NewBalance      int64                  `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                  `json:"change_amount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// AccountCreatedEvent represents a lazily created account
type AccountCreatedEvent struct {
	DiscordID      int64 `json:"discord_id"`
	InitialBalance int64 `json:"initial_balance"`
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// GamePlayedEvent represents a settled solo game
type GamePlayedEvent struct {
	UserID       int64             `json:"user_id"`
	Game         models.GameName   `json:"game"`
	Result       models.GameResult `json:"result"`
	Stake        int64             `json:"stake"`
	Payout       int64             `json:"payout"`
	AllInFlipped bool              `json:"all_in_flipped"`
}

func (e GamePlayedEvent) Type() EventType {
	return EventTypeGamePlayed
}

// PredictionResolvedEvent represents one resolved side-bet
type PredictionResolvedEvent struct {
	PredictorID    int64                   `json:"predictor_id"`
	TargetID       int64                   `json:"target_id"`
	Stake          int64                   `json:"stake"`
	Choice         models.PredictionChoice `json:"choice"`
	Result         models.GameResult       `json:"result"`
	Correct        bool                    `json:"correct"`
	PaidFromTarget int64                   `json:"paid_from_target"`
}

func (e PredictionResolvedEvent) Type() EventType {
	return EventTypePredictionResolved
}

// LoanStateChangeEvent represents a loan state transition
type LoanStateChangeEvent struct {
	LoanID       int64             `json:"loan_id"`
	Kind         models.LoanKind   `json:"kind"`
	BorrowerID   int64             `json:"borrower_id"`
	LenderID     *int64            `json:"lender_id,omitempty"`
	OldStatus    models.LoanStatus `json:"old_status"`
	NewStatus    models.LoanStatus `json:"new_status"`
	Principal    int64             `json:"principal"`
	RemainingDue int64             `json:"remaining_due"`
	ActorID      int64             `json:"actor_id"`
}

func (e LoanStateChangeEvent) Type() EventType {
	return EventTypeLoanStateChange
}

// LoanOverdueEvent represents an active loan found past its due date
type LoanOverdueEvent struct {
	LoanID       int64  `json:"loan_id"`
	BorrowerID   int64  `json:"borrower_id"`
	LenderID     *int64 `json:"lender_id,omitempty"`
	RemainingDue int64  `json:"remaining_due"`
	DaysOverdue  int    `json:"days_overdue"`
}

func (e LoanOverdueEvent) Type() EventType {
	return EventTypeLoanOverdue
}

// DuelResolvedEvent represents a finished duel
type DuelResolvedEvent struct {
	SessionKey   string          `json:"session_key"`
	DuelType     models.DuelType `json:"duel_type"`
	ChallengerID int64           `json:"challenger_id"`
	OpponentID   int64           `json:"opponent_id"`
	Bet          int64           `json:"bet"`
	AgainstHouse bool            `json:"against_house"`
	Tie          bool            `json:"tie"`
	WinnerID     *int64          `json:"winner_id,omitempty"`
	WinnerGain   int64           `json:"winner_gain"`
	Tax          int64           `json:"tax"`
	TimedOut     bool            `json:"timed_out"`
}

func (e DuelResolvedEvent) Type() EventType {
	return EventTypeDuelResolved
}

// ParamChangedEvent represents a tunable parameter override being set or reset
type ParamChangedEvent struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Reset    bool   `json:"reset"`
	ResetAll bool   `json:"reset_all"`
}

func (e ParamChangedEvent) Type() EventType {
	return EventTypeParamChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler, handlerIndex int) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Wait blocks until every handler started so far has returned
func (b *Bus) Wait() {
	b.wg.Wait()
}

// TransactionalBus holds pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Events outlive the request that produced them
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	if len(b.pending) > 0 {
		log.WithField("discardedEventCount", len(b.pending)).Debug("Discarding pending events from transactional bus")
	}
	b.pending = nil
}
