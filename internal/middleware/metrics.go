package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-api/internal/metrics"
)

// Metrics records request count, latency and in-flight requests per route.
// The /metrics endpoint itself is not observed.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			done := metrics.RequestStarted()
			defer done()
			start := time.Now()

			err := next(c)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = 500
				}
			}
			metrics.ObserveHTTP(c.Request().Method, c.Path(), status, time.Since(start))
			return err
		}
	}
}
