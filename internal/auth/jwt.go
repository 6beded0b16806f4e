// Package auth resolves judge bearer tokens.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "racetime"

// JudgeLookup loads judges by id.
type JudgeLookup interface {
	GetJudge(ctx context.Context, id int64) (*race.Judge, error)
}

// JWTValidator accepts HS256 tokens whose subject is an active judge id.
type JWTValidator struct {
	secret []byte
	judges JudgeLookup
	now    func() time.Time
}

func NewJWTValidator(secret string, judges JudgeLookup) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), judges: judges, now: time.Now}
}

// Validate returns the judge a token was issued to. Every failure is an authentication error.
func (v *JWTValidator) Validate(ctx context.Context, token string) (*race.Judge, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.New(apperrors.CodeAuthentication, "token is required")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	judgeID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || judgeID <= 0 {
		return nil, apperrors.New(apperrors.CodeAuthentication, "token subject is not a judge id")
	}

	judge, err := v.judges.GetJudge(ctx, judgeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeAuthentication, "judge does not exist")
		}
		return nil, apperrors.Wrap(apperrors.CodeAuthentication, "load judge", err)
	}
	if !judge.IsActive {
		return nil, apperrors.New(apperrors.CodeAuthentication, "judge is inactive")
	}
	return judge, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeAuthentication, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return apperrors.Wrap(apperrors.CodeAuthentication, "token exp is required", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeAuthentication, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrap(apperrors.CodeAuthentication, "token alg is invalid", err)
	default:
		return apperrors.Wrap(apperrors.CodeAuthentication, "token is invalid", err)
	}
}

// Issuer signs judge tokens with the shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

func (i *Issuer) Sign(judgeID int64, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(judgeID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign judge token: %w", err)
	}
	return signed, nil
}
