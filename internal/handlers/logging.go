package handlers

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs every request as one structured entry.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			entry := log.WithField("request_id", c.Response().Header().Get(echo.HeaderXRequestID))
			entry.Debugf("request started: %s %s", req.Method, req.URL.Path)

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is known.
				c.Error(err)
			}

			entry.WithFields(logrus.Fields{
				"method":      req.Method,
				"path":        c.Path(),
				"status":      c.Response().Status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   c.RealIP(),
				"user_agent":  req.UserAgent(),
			}).Info("request completed")
			return nil
		}
	}
}
