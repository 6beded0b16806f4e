package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type judgeMap map[int64]*race.Judge

func (m judgeMap) GetJudge(_ context.Context, id int64) (*race.Judge, error) {
	judge, ok := m[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return judge, nil
}

func signRaw(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTValidator(t *testing.T) {
	judges := judgeMap{
		1: {ID: 1, Username: "ana", IsActive: true},
		2: {ID: 2, Username: "bo", IsActive: false},
	}
	validator := NewJWTValidator(testSecret, judges)
	signer := NewIssuer(testSecret)

	valid, err := signer.Sign(1, time.Hour)
	require.NoError(t, err)

	judge, err := validator.Validate(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), judge.ID)

	expired, err := signer.Sign(1, -time.Minute)
	require.NoError(t, err)
	inactive, err := signer.Sign(2, time.Hour)
	require.NoError(t, err)
	unknown, err := signer.Sign(99, time.Hour)
	require.NoError(t, err)
	otherSecret, err := NewIssuer("another-secret-of-sufficient-size").Sign(1, time.Hour)
	require.NoError(t, err)

	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", expired},
		{"inactive judge", inactive},
		{"unknown judge", unknown},
		{"wrong secret", otherSecret},
		{"missing exp", signRaw(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: issuer, Subject: "1"}, testSecret)},
		{"wrong algorithm", signRaw(t, jwt.SigningMethodHS512, jwt.RegisteredClaims{Issuer: issuer, Subject: "1", ExpiresAt: exp}, testSecret)},
		{"foreign issuer", signRaw(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "elsewhere", Subject: "1", ExpiresAt: exp}, testSecret)},
		{"non numeric subject", signRaw(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: issuer, Subject: "ana", ExpiresAt: exp}, testSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.Validate(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeAuthentication, apperrors.CodeOf(err))
		})
	}
}
