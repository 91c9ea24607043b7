package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	base := New(KindNotFound, http.StatusNotFound, "Profile ghost does not exist.")
	wrapped := fmt.Errorf("resolve profile: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "Profile ghost does not exist.", MessageOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
	assert.Equal(t, "plain", MessageOf(stderrors.New("plain")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestWrapUnwraps(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(cause, KindNetwork, 0, "network error")

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "network error")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindBadRequest, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindNotFound, http.StatusNotFound},
		{KindChallengeRequired, http.StatusOK},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindNetwork, http.StatusBadGateway},
		{KindParsing, http.StatusBadGateway},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(KindNetwork))
	assert.True(t, IsRetryable(KindRateLimit))
	assert.True(t, IsRetryable(KindServerError))
	assert.False(t, IsRetryable(KindUnauthorized))
	assert.False(t, IsRetryable(KindNotFound))
	assert.False(t, IsRetryable(KindChallengeRequired))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(503))
	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}
