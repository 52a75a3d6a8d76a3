package batchapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/mmdatafocus/teller_backend/workflow"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	State string `json:"state,omitempty"`
}

// statusOf maps the domain error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	var (
		ve *models.ValidationError
		se *models.StateConflictError
		ne *models.NotFoundError
		ce *models.CollaboratorError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConfirmationDeclined):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrApproverRequired):
		return http.StatusForbidden
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.As(err, &se), errors.Is(err, utils.ErrLockNotObtained):
		return http.StatusConflict
	case errors.As(err, &ce):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	body := errorResponse{Error: err.Error()}

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	var se *models.StateConflictError
	if errors.As(err, &se) {
		body.State = string(se.State)
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, body)
}
