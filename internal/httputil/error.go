package httputil

import (
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	WriteJSON(w, http.StatusInternalServerError, errorBody{Code: apperrors.CodePersistence, Reason: "internal error"})
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		slog.Warn("bad request", "message", msg, "error", err)
	} else {
		slog.Warn("bad request", "message", msg)
	}
	WriteJSON(w, http.StatusBadRequest, errorBody{Code: apperrors.CodeValidation, Reason: msg})
}

func Unauthorized(w http.ResponseWriter, msg string) {
	slog.Warn("unauthorized", "message", msg)
	WriteJSON(w, http.StatusUnauthorized, errorBody{Code: apperrors.CodeAuthentication, Reason: msg})
}

type errorBody struct {
	Code   apperrors.Code `json:"code"`
	Reason string         `json:"reason"`
}

// StatusFor maps an error code to the HTTP status it is reported with.
func StatusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeAuthentication:
		return http.StatusUnauthorized
	case apperrors.CodeAuthorization:
		return http.StatusForbidden
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeState, apperrors.CodeCapacity:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error writes a service error. Storage failures are logged and reported generically.
func Error(w http.ResponseWriter, msg string, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodePersistence {
		InternalServerError(w, msg, err)
		return
	}
	slog.Warn(msg, "code", code, "error", err)
	WriteJSON(w, StatusFor(code), errorBody{Code: code, Reason: apperrors.PublicMessage(err)})
}
