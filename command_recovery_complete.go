package authflow

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type RecoveryCompleteMessage struct {
	Token           string `json:"token" doc:"Recovery token from the delivered link."`
	Password        string `json:"password" doc:"New password."`
	ConfirmPassword string `json:"confirm_password" doc:"New password, repeated."`
}

func (m RecoveryCompleteMessage) Type() string { return "auth.recovery.complete" }

// Validate checks the message payload. Password confirmation is checked by the
// handler so the mismatch surfaces as its own taxonomy error.
func (m RecoveryCompleteMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
		validation.Field(&m.Password, validation.Required),
		validation.Field(&m.ConfirmPassword, validation.Required),
	)
}

// RecoveryCompleteHandler consumes a recovery token and updates the subject's
// stored credential. Consumption happens before persistence so a crashed
// credential write cannot be retried by replaying the same token.
type RecoveryCompleteHandler struct {
	registry    *ResetTokenRegistry
	credentials CredentialStore
	logger      Logger
	activity    ActivitySink
}

// NewRecoveryCompleteHandler creates a handler with sane defaults.
func NewRecoveryCompleteHandler(registry *ResetTokenRegistry, credentials CredentialStore) *RecoveryCompleteHandler {
	return &RecoveryCompleteHandler{
		registry:    registry,
		credentials: credentials,
		logger:      defLogger{},
		activity:    noopActivitySink{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RecoveryCompleteHandler) WithLogger(logger Logger) *RecoveryCompleteHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithActivitySink sets the sink used to emit recovery events.
func (h *RecoveryCompleteHandler) WithActivitySink(sink ActivitySink) *RecoveryCompleteHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RecoveryCompleteHandler) Execute(ctx context.Context, event RecoveryCompleteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during recovery completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RecoveryCompleteHandler) execute(ctx context.Context, event RecoveryCompleteMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid recovery completion")
	}

	if event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	record, err := h.registry.Verify(ctx, event.Token)
	if err != nil {
		if IsRecoveryTokenError(err) {
			return err
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify recovery token")
	}

	if err := h.registry.Consume(ctx, event.Token); err != nil {
		// a concurrent submission raced this one to the token
		if goerrors.Is(err, ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenAlreadyUsed
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	if err := h.credentials.ResetPassword(ctx, record.SubjectID, passwordHash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update subject credential")
	}

	h.recordActivity(ctx, record)

	return nil
}

func (h *RecoveryCompleteHandler) recordActivity(ctx context.Context, record RecoveryToken) {
	event := ActivityEvent{
		EventType: ActivityEventRecoveryCompleted,
		Actor: ActorRef{
			ID:   record.SubjectID.String(),
			Type: "user",
		},
		SubjectID:  record.SubjectID.String(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during recovery completion: %v", err)
	}
}
