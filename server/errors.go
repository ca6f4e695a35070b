package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/housepricer/pkg/errors"
	"github.com/YuminosukeSato/housepricer/pkg/log"
)

// statusOf maps the core error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnknownModelKind):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrUnsupportedOperation), errors.Is(err, errors.ErrEncoding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrTraining):
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var verr *errors.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	var valErr *errors.ValueError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.GetLoggerWithName("server").Error("Request failed", err,
			"path", c.FullPath(),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"errors": err.Error()})
}
