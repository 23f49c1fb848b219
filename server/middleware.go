package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// requestLogger logs one line per request once the response is written.
func requestLogger(logger log.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				log.HTTPMethodKey, v.Method,
				log.HTTPPathKey, v.URIPath,
				log.HTTPStatusKey, v.Status,
				log.RemoteIPKey, v.RemoteIP,
				log.DurationMsKey, v.Latency.Milliseconds(),
			}
			if v.Status >= 500 {
				if v.Error != nil {
					fields = append([]any{v.Error}, fields...)
				}
				logger.Error("Request handled", fields...)
				return nil
			}
			logger.Info("Request handled", fields...)
			return nil
		},
	})
}
