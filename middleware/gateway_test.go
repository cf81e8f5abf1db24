package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const serviceToken = "svc-token-1234"

func newGuardedApp(t *testing.T) *fiber.App {
	t.Setenv("QUEST_SERVICE_TOKEN", serviceToken)
	app := fiber.New()
	app.Post("/quests", ServiceAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestServiceAuthAcceptsBearerToken(t *testing.T) {
	app := newGuardedApp(t)

	req := httptest.NewRequest("POST", "/quests", nil)
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestServiceAuthRejectsMissingHeader(t *testing.T) {
	app := newGuardedApp(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/quests", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestServiceAuthRejectsWrongToken(t *testing.T) {
	app := newGuardedApp(t)

	req := httptest.NewRequest("POST", "/quests", nil)
	req.Header.Set("Authorization", "Bearer not-the-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestServiceAuthRejectsBareToken(t *testing.T) {
	app := newGuardedApp(t)

	// The correct secret without the Bearer scheme must not authenticate.
	req := httptest.NewRequest("POST", "/quests", nil)
	req.Header.Set("Authorization", serviceToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
