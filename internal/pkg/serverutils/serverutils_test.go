package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"devotion-guide-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

var errGone = errors.New("gone")

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewNopLogger(), ErrorRule{Target: errGone, Status: fiber.StatusNotFound}))

	auth := app.Group("/me", NewJwtMiddleware(testSecret))
	auth.Get("", func(ctx *fiber.Ctx) error {
		id, err := UserID(ctx)
		if err != nil {
			return err
		}
		return ctx.JSON(SuccessResponse("ok", id.String()))
	})
	auth.Get("/admin", AdminOnly, func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/gone", func(ctx *fiber.Ctx) error { return fmt.Errorf("lookup: %w", errGone) })
	app.Get("/boom", func(ctx *fiber.Ctx) error { return errors.New("db exploded") })
	app.Get("/invalid", func(ctx *fiber.Ctx) error {
		return ValidateRequest(struct {
			Entrypoint string `validate:"required,oneof=home chat"`
		}{Entrypoint: "sidebar"})
	})
	return app
}

func TestJwtMiddleware(t *testing.T) {
	app := newApp()
	userID := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		path   string
		token  string
		query  bool
		status int
	}{
		{"missing token", "/me", "", false, 401},
		{"garbage token", "/me", "not-a-jwt", false, 401},
		{"valid user", "/me", sign(t, jwt.MapClaims{"user_id": userID.String(), "exp": exp}), false, 200},
		{"token in query", "/me", sign(t, jwt.MapClaims{"user_id": userID.String(), "exp": exp}), true, 200},
		{"expired", "/me", sign(t, jwt.MapClaims{"user_id": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()}), false, 401},
		{"non admin", "/me/admin", sign(t, jwt.MapClaims{"user_id": userID.String(), "role": "user", "exp": exp}), false, 403},
		{"admin", "/me/admin", sign(t, jwt.MapClaims{"user_id": userID.String(), "role": "admin", "exp": exp}), false, 204},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if tt.query {
				path += "?token=" + tt.token
			}
			req := httptest.NewRequest("GET", path, nil)
			if tt.token != "" && !tt.query {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	app := newApp()

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/gone", 404, "lookup: gone"},
		{"/boom", 500, "internal server error"},
		{"/invalid", 400, "validation failed: Entrypoint: oneof=home chat"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}
