package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/homecal/internal/model"
	"github.com/dukerupert/homecal/internal/push"
	"github.com/dukerupert/homecal/internal/websocket"
)

// DefaultBatchSize caps how many due reminders one dispatch run handles.
const DefaultBatchSize = 10

type DueReminders interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	MarkSent(ctx context.Context, id, reason string, sentAt *time.Time) error
}

type TokenResolver interface {
	Resolve(ctx context.Context, userIDs []string) ([]model.DeviceToken, error)
}

type Notifier interface {
	SendMulticast(ctx context.Context, tokens []model.DeviceToken, msg push.Message) (*push.BatchResponse, error)
}

type TokenDeleter interface {
	Delete(ctx context.Context, token string) error
}

// RunResult counts the outcomes of one dispatch run.
type RunResult struct {
	Due          int
	Delivered    int
	MissingEvent int
	NoTokens     int
	SendFailed   int
	LookupFailed int
	Skipped      int
}

// Dispatcher delivers due reminders. Each reminder gets at most one send
// attempt; every processed reminder ends in the sent state.
type Dispatcher struct {
	reminders DueReminders
	events    EventGetter
	resolver  TokenResolver
	notifier  Notifier
	tokens    TokenDeleter
	hub       websocket.Broadcaster
	batchSize int
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. hub may be nil.
func NewDispatcher(reminders DueReminders, events EventGetter, resolver TokenResolver, notifier Notifier,
	tokens TokenDeleter, hub websocket.Broadcaster, batchSize int, logger *slog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Dispatcher{
		reminders: reminders,
		events:    events,
		resolver:  resolver,
		notifier:  notifier,
		tokens:    tokens,
		hub:       hub,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run processes up to one batch of reminders due at now. A failure on one
// reminder is logged and does not stop the rest of the batch.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (RunResult, error) {
	due, err := d.reminders.ListDue(ctx, now, d.batchSize)
	if err != nil {
		return RunResult{}, fmt.Errorf("list due reminders: %w", err)
	}

	res := RunResult{Due: len(due)}
	for _, r := range due {
		outcome, err := d.dispatch(ctx, r, now)
		if err != nil {
			d.logger.Error("dispatch reminder", "reminder_id", r.ID, "error", err)
			res.Skipped++
			continue
		}
		switch outcome {
		case "":
			res.Delivered++
		case model.ReasonMissingEvent:
			res.MissingEvent++
		case model.ReasonNoTokens:
			res.NoTokens++
		case model.ReasonSendFailed:
			res.SendFailed++
		case model.ReasonLookupFailed:
			res.LookupFailed++
		}
	}

	if res.Due > 0 {
		d.logger.Info("dispatch run complete",
			"due", res.Due,
			"delivered", res.Delivered,
			"missing_event", res.MissingEvent,
			"no_tokens", res.NoTokens,
			"send_failed", res.SendFailed,
			"lookup_failed", res.LookupFailed,
			"skipped", res.Skipped,
		)
	}
	return res, nil
}

// dispatch handles one reminder and returns the terminal reason it was marked
// with ("" for a delivery). An error means the terminal write itself failed
// and the reminder was left unsent.
func (d *Dispatcher) dispatch(ctx context.Context, r model.Reminder, now time.Time) (string, error) {
	event, err := d.events.GetEvent(ctx, r.CalendarID, r.EventID)
	if err != nil {
		d.logger.Warn("reminder event lookup failed", "reminder_id", r.ID, "error", err)
		return model.ReasonLookupFailed, d.mark(ctx, r, model.ReasonLookupFailed, nil)
	}
	if event == nil {
		return model.ReasonMissingEvent, d.mark(ctx, r, model.ReasonMissingEvent, nil)
	}

	tokens, err := d.resolver.Resolve(ctx, event.ParticipantIDs)
	if err != nil {
		d.logger.Warn("reminder token lookup failed", "reminder_id", r.ID, "error", err)
		return model.ReasonLookupFailed, d.mark(ctx, r, model.ReasonLookupFailed, nil)
	}
	if len(tokens) == 0 {
		return model.ReasonNoTokens, d.mark(ctx, r, model.ReasonNoTokens, nil)
	}

	msg := push.Message{
		Title: "Reminder",
		Body:  fmt.Sprintf("%s starts in %d minutes", event.Title, r.ReminderMinutes),
		Data: map[string]string{
			"calendarId": r.CalendarID,
			"eventId":    r.EventID,
		},
		Tag: "reminder-" + r.ID,
	}
	resp, err := d.notifier.SendMulticast(ctx, tokens, msg)
	if err == nil && resp.SuccessCount == 0 {
		err = fmt.Errorf("all %d sends failed", resp.FailureCount)
	}
	if resp != nil {
		d.pruneExpired(ctx, resp.ExpiredTokens())
	}
	sentAt := now
	if err != nil {
		d.logger.Warn("reminder send failed", "reminder_id", r.ID, "error", err)
		return model.ReasonSendFailed, d.mark(ctx, r, model.ReasonSendFailed, &sentAt)
	}
	return "", d.mark(ctx, r, "", &sentAt)
}

func (d *Dispatcher) mark(ctx context.Context, r model.Reminder, reason string, sentAt *time.Time) error {
	if err := d.reminders.MarkSent(ctx, r.ID, reason, sentAt); err != nil {
		return err
	}
	if d.hub != nil {
		d.hub.Broadcast(websocket.NewMessage(r.HouseholdID, "reminder", "sent", r.ID,
			map[string]any{"event_id": r.EventID, "reason": reason}))
	}
	return nil
}

func (d *Dispatcher) pruneExpired(ctx context.Context, expired []string) {
	for _, tok := range expired {
		if err := d.tokens.Delete(ctx, tok); err != nil {
			d.logger.Warn("delete expired token", "error", err)
		}
	}
}
