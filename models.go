package authflow

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the subject model the recovery flow and login exchange operate on.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"password_hash,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	ResetedAt      *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// SessionSubjectFromUser projects the stored subject into the client-held record.
func SessionSubjectFromUser(user *User) *SessionSubject {
	if user == nil {
		return nil
	}

	role := user.Role
	if !role.IsValid() {
		role = RoleGuest
	}

	return &SessionSubject{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Role:     role,
	}
}
