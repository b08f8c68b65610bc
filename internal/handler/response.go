package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/xorcism-go/internal/dao"
	"github.com/xorcism-go/internal/errors"
	"github.com/xorcism-go/internal/xorcism"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// toAppError maps domain errors onto API errors
func toAppError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, dao.ErrKeyNotFound):
		return errors.NewNotFound("key not found")
	case stderrors.Is(err, dao.ErrSessionNotFound):
		return errors.NewNotFound("session not found")
	case stderrors.Is(err, dao.ErrKeyExists):
		return errors.NewConflict("key already exists")
	case stderrors.Is(err, dao.ErrPositionConflict):
		return errors.NewConflict(err.Error())
	case stderrors.Is(err, dao.ErrInvalidKeyName):
		return errors.NewBadRequestWithCause("invalid key name", err)
	case stderrors.Is(err, xorcism.ErrInvalidKey),
		stderrors.Is(err, xorcism.ErrUnknownSource),
		stderrors.Is(err, xorcism.ErrKeyMaterial):
		return errors.NewInvalidKey(err.Error(), err)
	default:
		return errors.NewInternalWithCause("Internal server error", err)
	}
}

// RespondError writes a JSON error response with logging
func RespondError(w http.ResponseWriter, err error) {
	appErr := toAppError(err)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error().Err(appErr.Cause).Int("code", int(appErr.Code)).Msg(appErr.Message)
	} else {
		log.Debug().Err(appErr.Cause).Int("code", int(appErr.Code)).Msg(appErr.Message)
	}

	RespondJSON(w, appErr.HTTPStatus, APIResponse{
		Code: int(appErr.Code),
		Msg:  appErr.Message,
	})
}

// RespondSuccess writes a JSON success response
func RespondSuccess(w http.ResponseWriter, data interface{}) {
	RespondJSON(w, http.StatusOK, APIResponse{
		Code: 0,
		Data: data,
	})
}

// RespondCreated writes a JSON success response with 201
func RespondCreated(w http.ResponseWriter, data interface{}) {
	RespondJSON(w, http.StatusCreated, APIResponse{
		Code: 0,
		Data: data,
	})
}

// RespondSuccessMsg writes a JSON success response with a message
func RespondSuccessMsg(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusOK, APIResponse{
		Code: 0,
		Msg:  message,
	})
}

// RespondJSON writes a raw JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
