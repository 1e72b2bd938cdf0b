package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/projecthub/invited/internal/invite"
	"github.com/projecthub/invited/pkg/model"
)

func getInviteHandler(app *App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			c.Set(fiber.HeaderAllow, "POST, OPTIONS")
			return fiber.NewError(fiber.StatusMethodNotAllowed, "Method not allowed")
		}

		req := new(model.InviteRequest)

		if err := json.Unmarshal(c.Body(), req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, invite.MsgInvalidBody)
		}

		ctx, caller := invite.WithCaller(c.UserContext())

		token, err := app.svc.Invite(ctx, bearerToken(c), req)

		if *caller != "" {
			c.Locals(callerKey, *caller)
		}

		if err != nil {
			var e *invite.Error
			if errors.As(err, &e) {
				return fiber.NewError(e.Status(), e.Message)
			}

			return err
		}

		return c.JSON(model.InviteResponse{Success: true, Token: token})
	}
}

const callerKey = "caller"

// getCaller returns the id of the authenticated caller, if any.
func getCaller(c *fiber.Ctx) string {
	if id, ok := c.Locals(callerKey).(string); ok {
		return id
	}

	return ""
}

// bearerToken returns the token of a "Bearer <token>" authorization header.
func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)

	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
