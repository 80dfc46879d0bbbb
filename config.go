package authflow

import (
	"time"
)

// SimpleConfig implements Config with static values; zero fields fall back to
// package defaults.
type SimpleConfig struct {
	SigningKey            string
	Issuer                string
	Audience              []string
	TokenExpiration       int
	ExtendedTokenDuration int
	RecoveryTokenTTL      time.Duration
	SweepInterval         time.Duration
	InactivityThreshold   time.Duration
	ActivityTickInterval  time.Duration
}

var _ Config = SimpleConfig{}

func (c SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c SimpleConfig) GetIssuer() string { return c.Issuer }

func (c SimpleConfig) GetAudience() []string { return c.Audience }

func (c SimpleConfig) GetTokenExpiration() int {
	if c.TokenExpiration <= 0 {
		return 1
	}
	return c.TokenExpiration
}

func (c SimpleConfig) GetExtendedTokenDuration() int {
	if c.ExtendedTokenDuration <= 0 {
		return 24 * 7
	}
	return c.ExtendedTokenDuration
}

func (c SimpleConfig) GetRecoveryTokenTTL() time.Duration {
	if c.RecoveryTokenTTL <= 0 {
		return DefaultRecoveryTokenTTL
	}
	return c.RecoveryTokenTTL
}

func (c SimpleConfig) GetSweepInterval() time.Duration {
	if c.SweepInterval <= 0 {
		return DefaultSweepInterval
	}
	return c.SweepInterval
}

func (c SimpleConfig) GetInactivityThreshold() time.Duration {
	if c.InactivityThreshold <= 0 {
		return DefaultInactivityThreshold
	}
	return c.InactivityThreshold
}

func (c SimpleConfig) GetActivityTickInterval() time.Duration {
	if c.ActivityTickInterval <= 0 {
		return DefaultActivityTickInterval
	}
	return c.ActivityTickInterval
}

// NewTokenServiceFromConfig builds the token service off a Config instance.
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetExtendedTokenDuration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		logger,
	)
}

// NewResetTokenRegistryFromConfig builds a registry off a Config instance.
func NewResetTokenRegistryFromConfig(cfg Config, opts ...RegistryOption) *ResetTokenRegistry {
	base := []RegistryOption{
		WithRegistryTTL(cfg.GetRecoveryTokenTTL()),
		WithRegistrySweepInterval(cfg.GetSweepInterval()),
	}
	return NewResetTokenRegistry(append(base, opts...)...)
}

// NewActivityMonitorFromConfig builds a monitor off a Config instance.
func NewActivityMonitorFromConfig(store *SessionStore, cfg Config, opts ...MonitorOption) *ActivityMonitor {
	base := []MonitorOption{
		WithMonitorThreshold(cfg.GetInactivityThreshold()),
		WithMonitorTickInterval(cfg.GetActivityTickInterval()),
	}
	return NewActivityMonitor(store, append(base, opts...)...)
}
