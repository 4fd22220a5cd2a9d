package handler

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

var statusByKind = []struct {
	kind   error
	status int
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrInvalidPaymentSignature, http.StatusBadRequest},
	{domain.ErrPaymentIntentFailed, http.StatusBadGateway},
	{domain.ErrRateLimited, http.StatusTooManyRequests},
}

// classify maps err to a status and a body. Anything without a domain kind is
// an internal error and its text is not exposed.
func classify(err error) (int, errorBody) {
	for _, m := range statusByKind {
		if !errors.Is(err, m.kind) {
			continue
		}
		var de *domain.Error
		if errors.As(err, &de) {
			return m.status, errorBody{Code: de.Code, Message: de.Message}
		}
		return m.status, errorBody{Code: "ERROR", Message: m.kind.Error()}
	}
	return http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal server error"}
}

func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	logger := logging.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.String("code", body.Code))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, domain.Validation("INVALID_REQUEST", err.Error()))
}
