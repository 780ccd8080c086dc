package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/svc-users/services"
	"github.com/upb/svc-users/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// Internal failures are logged and answered with a generic body.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, utils.CodeProfileNotFound, publicMessage(err))

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, utils.CodeValidationFailed, publicMessage(err), details)

	case services.IsMissingSubjectError(err):
		writeErr = utils.WriteBadRequest(w, utils.CodeMissingSubject, "", nil)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// publicMessage returns the domain message without the wrapped cause
func publicMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// HandleValidationError handles validation errors from request parsing.
// Decoder failures get a fixed message so parser internals stay in the logs.
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	message := "invalid request body"
	var details map[string]interface{}

	if utils.IsValidationError(err) {
		message = err.Error()
		fields := utils.GetValidationFields(err)
		details = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
	} else {
		logger.Debug("rejected request body", zap.Error(err))
	}

	if err := utils.WriteBadRequest(w, utils.CodeValidationFailed, message, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
