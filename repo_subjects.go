package authflow

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetSubjectPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reseted_at" = CURRENT_TIMESTAMP
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
);`

// Subjects is the persistence collaborator the recovery flow and the login
// exchange depend on. It satisfies both SubjectStore and CredentialStore.
type Subjects interface {
	repository.Repository[*User]

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSucccessfulLogin(ctx context.Context, user *User) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type subjects struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Subjects                     = (*subjects)(nil)
	_ repository.Repository[*User] = (*subjects)(nil)
)

// NewSubjectsRepository returns the bun-backed Subjects implementation.
func NewSubjectsRepository(db *bun.DB) Subjects {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &subjects{
		Repository: repo,
		db:         db,
	}
}

func (s *subjects) TrackAttemptedLogin(ctx context.Context, user *User) error {
	now := time.Now()
	user.LoginAttempts++
	user.LoginAttemptAt = &now

	_, err := s.db.NewUpdate().
		Model(user).
		Column("login_attempts", "login_attempt_at").
		WherePK().
		Exec(ctx)
	return err
}

func (s *subjects) TrackSucccessfulLogin(ctx context.Context, user *User) error {
	now := time.Now()
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	user.LoggedInAt = &now

	_, err := s.db.NewUpdate().
		Model(user).
		Column("login_attempts", "login_attempt_at", "loggedin_at").
		WherePK().
		Exec(ctx)
	return err
}

func (s *subjects) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, ResetSubjectPasswordSQL, passwordHash, id.String())
	return err
}

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Subjects() Subjects
}

type mngr struct {
	db       *bun.DB
	subjects Subjects
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		subjects: NewSubjectsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.subjects == nil {
		return errors.New("repository subjects should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Subjects() Subjects {
	return m.subjects
}
