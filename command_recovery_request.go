package authflow

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// RecoveryRequestAck is the uniform outward message: the response shape is the
// same whether or not the email exists, so callers cannot enumerate accounts.
const RecoveryRequestAck = "If that account exists, a recovery link is on its way."

type RecoveryRequestMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *RecoveryRequestResponse)
}

func (m RecoveryRequestMessage) Type() string { return "auth.recovery.request" }

// Validate checks the message payload.
func (m RecoveryRequestMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

type RecoveryRequestResponse struct {
	Message string
	Success bool
}

// RecoveryRequestHandler turns a forgot-password request into a delivered,
// single-use recovery token.
type RecoveryRequestHandler struct {
	registry *ResetTokenRegistry
	subjects SubjectStore
	notifier Notifier
	logger   Logger
	activity ActivitySink
}

// NewRecoveryRequestHandler creates a handler with sane defaults.
func NewRecoveryRequestHandler(registry *ResetTokenRegistry, subjects SubjectStore, notifier Notifier) *RecoveryRequestHandler {
	return &RecoveryRequestHandler{
		registry: registry,
		subjects: subjects,
		notifier: notifier,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RecoveryRequestHandler) WithLogger(logger Logger) *RecoveryRequestHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithActivitySink sets the sink used to emit recovery events.
func (h *RecoveryRequestHandler) WithActivitySink(sink ActivitySink) *RecoveryRequestHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RecoveryRequestHandler) Execute(ctx context.Context, event RecoveryRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recovery request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecoveryRequestHandler) execute(ctx context.Context, event RecoveryRequestMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid recovery request")
	}

	subject, err := h.subjects.GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			// same outward shape as the success path
			h.logger.Debug("recovery requested for unknown email")
			h.respond(event)
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve subject for recovery")
	}

	token, err := h.registry.Issue(ctx, subject.ID, subject.Email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue recovery token")
	}

	if err := h.notifier.SendRecoveryLink(ctx, subject.Email, token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to deliver recovery link")
	}

	h.recordActivity(ctx, subject)
	h.respond(event)

	return nil
}

func (h *RecoveryRequestHandler) respond(event RecoveryRequestMessage) {
	if event.OnResponse == nil {
		return
	}
	event.OnResponse(&RecoveryRequestResponse{
		Message: RecoveryRequestAck,
		Success: true,
	})
}

func (h *RecoveryRequestHandler) recordActivity(ctx context.Context, subject *User) {
	event := ActivityEvent{
		EventType: ActivityEventRecoveryRequested,
		Actor: ActorRef{
			ID:   subject.ID.String(),
			Type: "user",
		},
		SubjectID:  subject.ID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during recovery request: %v", err)
	}
}
