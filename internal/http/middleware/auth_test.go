package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newAuthApp(tokens []string) *fiber.App {
	app := fiber.New()
	app.Use(APITokenAuth(tokens))
	app.Post("/check", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"authorized": true})
	})
	return app
}

func TestAPITokenAuthMissingToken(t *testing.T) {
	app := newAuthApp([]string{"secret"})

	req := httptest.NewRequest("POST", "/check", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPITokenAuthInvalidToken(t *testing.T) {
	app := newAuthApp([]string{"secret"})

	req := httptest.NewRequest("POST", "/check", nil)
	req.Header.Set(TokenHeader, "wrong")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAPITokenAuthValidToken(t *testing.T) {
	app := newAuthApp([]string{"secret", "other"})

	req := httptest.NewRequest("POST", "/check", nil)
	req.Header.Set(TokenHeader, "other")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAPITokenAuthEmptyAllowSetRejectsAll(t *testing.T) {
	app := newAuthApp(nil)

	req := httptest.NewRequest("POST", "/check", nil)
	req.Header.Set(TokenHeader, "anything")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
