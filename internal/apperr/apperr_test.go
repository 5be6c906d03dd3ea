package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusBadRequest},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindConfiguration, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.HTTPStatus())
		})
	}
}

func TestKindOf_WrappedChain(t *testing.T) {
	err := fmt.Errorf("update role: %w", NotFound("user"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindValidation))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestPublicMessage(t *testing.T) {
	cause := errors.New("pq: relation \"roles\" does not exist")

	assert.Equal(t, "Unauthorized", PublicMessage(Unauthenticated("session revoked")))
	assert.Equal(t, "Invalid credentials", PublicMessage(InvalidCredentials()))
	assert.Equal(t, 401, InvalidCredentials().Kind.HTTPStatus())
	assert.Equal(t, "Forbidden", PublicMessage(Forbidden()))
	assert.Equal(t, "user not found", PublicMessage(NotFound("user")))
	assert.Equal(t, "email is required", PublicMessage(Invalid("email", "email is required")))
	assert.Equal(t, "System configuration error", PublicMessage(Wrap(KindConfiguration, "default role not found", cause)))
	assert.Equal(t, "Internal server error", PublicMessage(cause))
	assert.Equal(t, "Internal server error", PublicMessage(Wrap(KindInternal, "load grant", cause)))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindInternal, "insert audit log", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}
