package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// StatusCode maps an error to its HTTP status.
//
//	ValidationError, ConfigError, ValueError, DimensionError -> 422
//	NotFoundError                                           -> 404
//	ConflictError                                           -> 409
//	StateError, NotFittedError                              -> 400
//	anything else                                           -> 500
func StatusCode(err error) int {
	var (
		httpErr    *echo.HTTPError
		validation *errors.ValidationError
		config     *errors.ConfigError
		value      *errors.ValueError
		dimension  *errors.DimensionError
		notFound   *errors.NotFoundError
		conflict   *errors.ConflictError
		state      *errors.StateError
		notFitted  *errors.NotFittedError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.As(err, &validation), errors.As(err, &config),
		errors.As(err, &value), errors.As(err, &dimension):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &state), errors.As(err, &notFitted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func detail(err error, code int) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprint(httpErr.Message)
	}
	if code >= http.StatusInternalServerError {
		return http.StatusText(code)
	}
	return err.Error()
}

// handleError writes {"detail": ...} with the mapped status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := StatusCode(err)
	req := c.Request()
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", err, log.HTTPMethodKey, req.Method, log.HTTPPathKey, req.URL.Path)
	} else {
		s.logger.Debug("Request rejected",
			log.HTTPMethodKey, req.Method,
			log.HTTPPathKey, req.URL.Path,
			log.HTTPStatusKey, code,
			"error", err.Error(),
		)
	}

	var werr error
	if req.Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, ErrorResponse{Detail: detail(err, code)})
	}
	if werr != nil {
		s.logger.Error("Failed to write error response", werr)
	}
}
