package log

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invited",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "The latency of the HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"api"})

	httpRequestsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invited",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of the HTTP requests.",
	}, []string{"api", "path", "method", "code"})
)

type LoggerConfig struct {
	Name string
	// UserGetter returns the caller id, empty for anonymous requests
	UserGetter    func(c *fiber.Ctx) string
	DoMetrics     bool
	LogErrorsOnly bool
	// Skip excludes requests from logging and metrics
	Skip func(c *fiber.Ctx) bool
}

func NewFiberLogger(conf *LoggerConfig) fiber.Handler {
	if conf == nil {
		conf = &LoggerConfig{Name: "http"}
	}

	logger := slog.Default().With(slog.String("logger", conf.Name))

	return func(c *fiber.Ctx) error {
		if conf.Skip != nil && conf.Skip(c) {
			return c.Next()
		}

		start := time.Now()
		chainErr := c.Next()
		wt := time.Since(start)

		// the error handler has not run yet, take the status from the error
		status := c.Response().StatusCode()
		if chainErr != nil {
			status = errorStatus(chainErr)
		}

		if conf.DoMetrics {
			metrics(conf.Name, c, status, wt)
		}

		msg := fmt.Sprintf("%d %s %s", status, c.Method(), c.Path())
		l := logger

		if chainErr != nil {
			l = l.With(slog.Any("error", chainErr))
		}

		attrs := []any{
			slog.String("client", c.IP()),
			slog.Int("status", status),
			slog.Int64("ms", wt.Milliseconds()),
		}

		if conf.UserGetter != nil {
			if user := conf.UserGetter(c); user != "" {
				attrs = append(attrs, slog.String("user", user))
			}
		}

		if conf.LogErrorsOnly {
			switch {
			case status < 300:
				l.Debug(msg, attrs...)
			case status < 500:
				l.Info(msg, attrs...)
			default:
				l.Warn(msg, attrs...)
			}
		} else {
			l.Info(msg, attrs...)
		}

		return chainErr
	}
}

func errorStatus(err error) int {
	if e, ok := err.(*fiber.Error); ok {
		return e.Code
	}

	return fiber.StatusInternalServerError
}

func metrics(api string, ctx *fiber.Ctx, status int, t time.Duration) {
	httpRequestsDuration.With(prometheus.Labels{"api": api}).Observe(t.Seconds())

	httpRequestsCount.With(prometheus.Labels{
		"api":    api,
		"path":   ctx.Route().Path,
		"method": ctx.Method(),
		"code":   strconv.Itoa(status),
	}).Inc()
}
