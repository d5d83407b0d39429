package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/memevote/internal/images"
	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	"github.com/MarcoPoloResearchLab/memevote/internal/solana"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorKind string

const (
	kindValidation        errorKind = "validation"
	kindNotFound          errorKind = "not_found"
	kindTransactionFailed errorKind = "transaction_failed"
	kindExternalService   errorKind = "external_service"
	kindTimeout           errorKind = "timeout"
	kindInternal          errorKind = "internal"
)

func (k errorKind) status() int {
	switch k {
	case kindValidation, kindTransactionFailed:
		return http.StatusBadRequest
	case kindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// apiError is the request-scoped failure a handler turns into a response.
type apiError struct {
	kind    errorKind
	message string
	cause   error
	// payload is the on-chain error reported for a failed transaction.
	payload json.RawMessage
}

type errorResponse struct {
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

func newValidationError(message string, cause error) apiError {
	return apiError{kind: kindValidation, message: message, cause: cause}
}

// classifyError maps collaborator errors onto the response taxonomy. Errors
// it does not recognise become external service failures carrying fallback.
func classifyError(err error, fallback string) apiError {
	var transactionErr *solana.TransactionError
	switch {
	case errors.As(err, &transactionErr):
		return apiError{kind: kindTransactionFailed, message: "Transaction failed", cause: err, payload: transactionErr.Payload}
	case errors.Is(err, solana.ErrConfirmationTimeout):
		return apiError{kind: kindTimeout, message: "Transaction confirmation timed out", cause: err}
	case errors.Is(err, memes.ErrSubmissionNotFound), errors.Is(err, memes.ErrSubmissionNotUpvotable):
		return apiError{kind: kindNotFound, message: "Submission not found or not active", cause: err}
	case errors.Is(err, memes.ErrMissingField):
		return newValidationError("Missing required fields", err)
	case errors.Is(err, memes.ErrInvalidMemo):
		return newValidationError("Memo must be at least 10 characters", err)
	case errors.Is(err, memes.ErrInvalidSubmissionID):
		return newValidationError("Invalid submission id", err)
	case errors.Is(err, images.ErrImageNotFound), errors.Is(err, images.ErrInvalidImageName):
		return newValidationError("Image not found", err)
	case errors.Is(err, solana.ErrInvalidAddress):
		return apiError{kind: kindInternal, message: "Invalid address", cause: err}
	default:
		return apiError{kind: kindExternalService, message: fallback, cause: err}
	}
}

func (h *httpHandler) respondError(c *gin.Context, operation string, failure apiError) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", string(failure.kind)),
		zap.Int("status", failure.kind.status()),
	}
	if failure.cause != nil {
		fields = append(fields, zap.Error(failure.cause))
	}
	if failure.kind.status() >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}

	response := errorResponse{Message: failure.message, Error: failure.payload}
	var serviceErr *memes.ServiceError
	if errors.As(failure.cause, &serviceErr) {
		response.Code = serviceErr.Code()
	}
	c.AbortWithStatusJSON(failure.kind.status(), response)
}
