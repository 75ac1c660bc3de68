package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jwgillispie/sway/internal/user"
)

// Middleware verifies the bearer token, resolves the local user record
// (provisioning it on first sight) and stores user_id and username in
// request locals.
func Middleware(verifier *Verifier, users *user.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		u, err := users.Resolve(c.Context(), claims.Subject, claims.Name, claims.Email, claims.Picture)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not resolve user")
		}

		c.Locals("user_id", u.ID)
		c.Locals("username", u.Username)
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
