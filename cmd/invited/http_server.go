package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/projecthub/invited/internal/invite"
	"github.com/projecthub/invited/pkg/log"
	"github.com/projecthub/invited/pkg/model"
)

const bodyLimit = 64 * 1024

type HttpServer struct {
	f    *fiber.App
	addr string
}

func NewHttp(app *App) *HttpServer {
	srv := &HttpServer{addr: app.cfg.Addr()}

	srv.f = fiber.New(fiber.Config{
		EnablePrintRoutes:     false,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          jsonErrorHandler,
	})

	srv.f.Use(corsMiddleware(app.cfg.CORS()))
	// the access log sits outside recover, so a panic is logged as a 500
	srv.f.Use(log.NewFiberLogger(&log.LoggerConfig{
		Name:          "invite_api",
		UserGetter:    getCaller,
		DoMetrics:     true,
		LogErrorsOnly: false,
		Skip:          skipOperational,
	}))
	srv.f.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: logPanic,
	}))

	srv.f.All("/invite-user", getInviteHandler(app))
	srv.f.All("/functions/v1/invite-user", getInviteHandler(app))

	srv.f.Get("/healthz", getHealthHandler())
	srv.f.Get("/metrics", getMetricsHandler())

	return srv
}

func (srv *HttpServer) Address() string {
	return srv.addr
}

func (srv *HttpServer) Listen() error {
	return srv.f.Listen(srv.addr)
}

func (srv *HttpServer) Shutdown(timeout time.Duration) error {
	return srv.f.ShutdownWithTimeout(timeout)
}

// jsonErrorHandler renders every error as {"error": message}. Messages of
// non-fiber errors are not shown to the caller.
func jsonErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := invite.MsgInternal

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}

	return c.Status(code).JSON(model.ErrorResponse{Error: msg})
}

func logPanic(c *fiber.Ctx, e any) {
	slog.Default().With("logger", "http").Error(fmt.Sprintf("panic in %s %s: %v", c.Method(), c.Path(), e),
		slog.String("stack", string(debug.Stack())))
}

func skipOperational(c *fiber.Ctx) bool {
	return c.Path() == "/healthz" || c.Path() == "/metrics"
}

func getHealthHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func getMetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{DisableCompression: true},
	))
}
