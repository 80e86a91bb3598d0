package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService from the given configuration.
// Access and refresh tokens are signed with independent secrets so leaking
// one never forges the other.
func NewTokenService(cfg Config, logger Logger) (*TokenServiceImpl, error) {
	if logger == nil {
		logger = defLogger{}
	}

	accessTTL, err := time.ParseDuration(cfg.GetAccessTokenExpiration())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid access token expiration")
	}

	refreshTTL, err := time.ParseDuration(cfg.GetRefreshTokenExpiration())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid refresh token expiration")
	}

	return &TokenServiceImpl{
		accessKey:  []byte(cfg.GetAccessSigningKey()),
		refreshKey: []byte(cfg.GetRefreshSigningKey()),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		logger:     logger,
	}, nil
}

// IssueAccessToken signs a short-lived access token for the subject
func (ts *TokenServiceImpl) IssueAccessToken(subjectID, email string) (string, error) {
	return ts.sign(subjectID, email, TokenKindAccess)
}

// IssueRefreshToken signs a long-lived refresh token for the subject
func (ts *TokenServiceImpl) IssueRefreshToken(subjectID, email string) (string, error) {
	return ts.sign(subjectID, email, TokenKindRefresh)
}

// IssuePair issues both tokens for the subject. ExpiresIn is derived from the
// configured access TTL rather than the token's own embedded expiry; the two
// track the same configuration value.
func (ts *TokenServiceImpl) IssuePair(subjectID, email string) (*TokenPair, error) {
	access, err := ts.IssueAccessToken(subjectID, email)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.IssueRefreshToken(subjectID, email)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(ts.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess parses and validates an access token, returning its claims
func (ts *TokenServiceImpl) VerifyAccess(token string) (*TokenClaims, error) {
	return ts.verify(token, TokenKindAccess)
}

// VerifyRefresh parses and validates a refresh token, returning its claims
func (ts *TokenServiceImpl) VerifyRefresh(token string) (*TokenClaims, error) {
	return ts.verify(token, TokenKindRefresh)
}

// Peek decodes a token without verifying its signature. Inspection only:
// never make authorization decisions from a peeked payload.
func (ts *TokenServiceImpl) Peek(token string) *TokenClaims {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// IsExpired reports whether the token is past its expiry. Undecodable tokens
// count as expired. Never errors.
func (ts *TokenServiceImpl) IsExpired(token string) bool {
	claims := ts.Peek(token)
	if claims == nil {
		return true
	}

	exp := claims.Expires()
	if exp.IsZero() {
		return true
	}

	// exp == now is already invalid
	return !time.Now().Before(exp)
}

func (ts *TokenServiceImpl) sign(subjectID, email string, kind TokenKind) (string, error) {
	key, ttl := ts.kindParams(kind)

	claims := newTokenClaims(subjectID, email, kind, ts.issuer, ts.audience, time.Now(), ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) verify(tokenString string, kind TokenKind) (*TokenClaims, error) {
	key, _ := ts.kindParams(kind)

	claims, err := ts.parse(tokenString, key)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}

		// The sibling kind is signed with a different secret, so a cross-kind
		// presentation fails the signature check before the discriminator is
		// ever read. Re-verify against the sibling key to tell an honest kind
		// mismatch apart from a forgery.
		if sibling, siblingErr := ts.parse(tokenString, ts.siblingKey(kind)); siblingErr == nil && sibling.Kind != kind {
			return nil, ErrTokenKindMismatch
		}

		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims.Kind != kind {
		return nil, ErrTokenKindMismatch
	}

	return claims, nil
}

func (ts *TokenServiceImpl) parse(tokenString string, key []byte) (*TokenClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (ts *TokenServiceImpl) kindParams(kind TokenKind) ([]byte, time.Duration) {
	if kind == TokenKindRefresh {
		return ts.refreshKey, ts.refreshTTL
	}
	return ts.accessKey, ts.accessTTL
}

func (ts *TokenServiceImpl) siblingKey(kind TokenKind) []byte {
	if kind == TokenKindRefresh {
		return ts.accessKey
	}
	return ts.refreshKey
}
