package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

// SecretHeader carries the shared secret on webhook calls in both directions.
const SecretHeader = "x-webhook-secret"

// WebhookSecret returns a middleware that rejects any call whose shared
// secret header does not match the server-held value. The comparison is
// constant time and the rejection is uniform: a caller learns nothing about
// why the request was refused or whether a case exists.
func WebhookSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return apperrors.NewUnauthorized("unauthorized")
		}
		provided := c.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return apperrors.NewUnauthorized("unauthorized")
		}
		return c.Next()
	}
}
