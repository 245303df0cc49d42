package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/contrastkit/contrastkit/errors"
	"github.com/contrastkit/contrastkit/internal/metrics"
	"github.com/contrastkit/contrastkit/log"
	"github.com/contrastkit/contrastkit/tracing"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestID reuses an incoming X-Request-Id or generates one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			return next(c)
		}
	}
}

// Trace starts a server span per request.
func Trace() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, span := tracing.Tracer().Start(req.Context(), req.Method+" "+routeOf(c),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.target", req.URL.Path),
				),
			)
			defer span.End()

			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.status_code", status))
			if err != nil || status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			return err
		}
	}
}

// RequestLogger logs one line per request and records request metrics.
func RequestLogger(logger log.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			route := routeOf(c)
			latency := time.Since(start)

			if m != nil {
				m.HTTPRequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
				m.HTTPRequestDuration.WithLabelValues(req.Method, route).Observe(latency.Seconds())
			}

			fields := log.Fields{
				"method":     req.Method,
				"route":      route,
				"path":       req.URL.Path,
				"status":     status,
				"latency_ms": latency.Milliseconds(),
				"ip":         RateLimitKey(c),
				"user_agent": req.UserAgent(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn(req.Context(), "Request failed", fields)
			} else {
				logger.Info(req.Context(), "Request handled", fields)
			}

			return nil
		}
	}
}

// Recover turns a panic into a 500 JSON response.
func Recover(logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				perr, ok := r.(error)
				if !ok {
					perr = fmt.Errorf("%v", r)
				}
				logger.Error(c.Request().Context(), "Recovered from panic", perr, log.Fields{
					"path": c.Request().URL.Path,
				})

				if !c.Response().Committed {
					err = c.JSON(http.StatusInternalServerError, apierrors.Internal("Internal server error"))
				}
			}()

			return next(c)
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}

	return "unmatched"
}
