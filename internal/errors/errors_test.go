package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", NewBadRequest("x"), http.StatusBadRequest},
		{"unauthorized", NewUnauthorized("x"), http.StatusUnauthorized},
		{"not found", NewNotFound("x"), http.StatusNotFound},
		{"conflict", NewConflict("x"), http.StatusConflict},
		{"invalid key", NewInvalidKey("x", nil), http.StatusUnprocessableEntity},
		{"storage", NewStorageError("x", nil), http.StatusServiceUnavailable},
		{"stream", NewStreamError("x", nil), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFound("x")), http.StatusNotFound},
		{"plain", stderrors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := stderrors.New("bolt: database not open")
	err := NewStorageError("failed to load key", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load key: bolt: database not open", err.Error())
	assert.Equal(t, "nope", NewBadRequest("nope").Error())
}

func TestToJSON(t *testing.T) {
	var body map[string]interface{}

	require.NoError(t, json.Unmarshal(ToJSON(NewInvalidKey("empty key", nil)), &body))
	assert.Equal(t, float64(ErrCodeInvalidKey), body["code"])
	assert.Equal(t, "empty key", body["msg"])

	require.NoError(t, json.Unmarshal(ToJSON(stderrors.New("boom")), &body))
	assert.Equal(t, float64(ErrCodeInternal), body["code"])
	assert.Equal(t, "boom", body["msg"])
}
