package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// TokenHeader is the header carrying the caller's API token.
const TokenHeader = "api_token"

// APITokenAuth rejects requests whose api_token header is missing or not in
// the configured allow-set. It is a pure check over startup config; the
// download route is registered without it because there the link itself is
// the credential.
func APITokenAuth(tokens []string) fiber.Handler {
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			allowed[t] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		token := c.Get(TokenHeader)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: missing api_token",
			})
		}
		if _, ok := allowed[token]; !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: invalid API token",
			})
		}
		return c.Next()
	}
}
