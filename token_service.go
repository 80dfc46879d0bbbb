package authflow

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenPair is the outcome of a successful login exchange.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService mints and validates the session token pair.
type TokenService interface {
	GeneratePair(identity Identity) (TokenPair, error)
	Validate(tokenString string) (*JWTClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey       []byte
	tokenExpiration  int
	extendedDuration int
	issuer           string
	audience         jwt.ClaimStrings
	logger           Logger
	now              func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, tokenExpiration, extendedDuration int, issuer string, audience jwt.ClaimStrings, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:       signingKey,
		tokenExpiration:  tokenExpiration,
		extendedDuration: extendedDuration,
		issuer:           issuer,
		audience:         audience,
		logger:           logger,
		now:              time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenServiceImpl) WithClock(clock func() time.Time) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// GeneratePair mints an access/refresh token pair for the given identity.
func (ts *TokenServiceImpl) GeneratePair(identity Identity) (TokenPair, error) {
	if identity == nil {
		return TokenPair{}, errors.New("identity is required", errors.CategoryBadInput)
	}

	now := ts.now()
	accessExpires := now.Add(time.Duration(ts.tokenExpiration) * time.Hour)
	refreshExpires := now.Add(time.Duration(ts.extendedDuration) * time.Hour)

	access, err := ts.SignClaims(ts.claimsFor(identity, now, accessExpires, TokenUseAccess))
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.SignClaims(ts.claimsFor(identity, now, refreshExpires, TokenUseRefresh))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpires,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*JWTClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

func (ts *TokenServiceImpl) claimsFor(identity Identity, issuedAt, expiresAt time.Time, use string) *JWTClaims {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
		TokenUse: use,
	}
}
