package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Soule73/evalium-sub002/internal/utils"
)

type roleSet map[string]struct{}

func newRoleSet(roles []string) roleSet {
	set := make(roleSet, len(roles))
	for _, role := range roles {
		if normalized := normalizeRole(role); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func (s roleSet) allows(role string) bool {
	_, ok := s[normalizeRole(role)]
	return ok
}

// RequireRole gates a route group on the role stored by JWTProtected. It answers 401 when no
// identity is present and 403 when the role is not listed.
func RequireRole(roles ...string) fiber.Handler {
	allowed := newRoleSet(roles)

	return func(c *fiber.Ctx) error {
		if c.Locals(LocalUserID) == nil {
			return unauthenticated(c, "authentication required")
		}
		role, _ := c.Locals(LocalUserRole).(string)
		if !allowed.allows(role) {
			return utils.SendErrorCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
		}
		return c.Next()
	}
}
