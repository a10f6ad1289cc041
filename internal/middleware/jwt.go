package middleware

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Soule73/evalium-sub002/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Identity is the caller extracted from a bearer token. Tokens are issued by the school
// platform; this service only verifies them.
type Identity struct {
	UserID uint
	Role   string
}

var (
	errMissingBearer  = errors.New("authorization header missing")
	errMalformedToken = errors.New("invalid authorization header")
	errNoSubject      = errors.New("token subject missing")
)

// JWTProtected rejects requests without a valid HMAC-signed bearer token and stores the
// caller's identity in LocalUserID and LocalUserRole.
func JWTProtected(secret string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods(hmacMethods))

	return func(c *fiber.Ctx) error {
		raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return unauthenticated(c, err.Error())
		}

		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return unauthenticated(c, "invalid token")
		}

		identity, err := identityFromClaims(claims)
		if err != nil {
			return unauthenticated(c, err.Error())
		}
		c.Locals(LocalUserID, identity.UserID)
		if identity.Role != "" {
			c.Locals(LocalUserRole, identity.Role)
		}
		return c.Next()
	}
}

func unauthenticated(c *fiber.Ctx, message string) error {
	return utils.SendErrorCode(c, fiber.StatusUnauthorized, "unauthenticated", message)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingBearer
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errMalformedToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMalformedToken
	}
	return token, nil
}

// identityFromClaims reads the subject from sub, user_id or id and the role from role or the
// first non-empty entry of roles.
func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	var identity Identity
	for _, key := range []string{"sub", "user_id", "id"} {
		if id, ok := claimUint(claims[key]); ok {
			identity.UserID = id
			break
		}
	}
	if identity.UserID == 0 {
		return Identity{}, errNoSubject
	}

	for _, key := range []string{"role", "roles"} {
		if role := claimRole(claims[key]); role != "" {
			identity.Role = role
			break
		}
	}
	return identity, nil
}

func claimUint(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case float64:
		if v < 1 || v > math.MaxUint32 || v != math.Trunc(v) {
			return 0, false
		}
		return uint(v), true
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil || parsed == 0 {
			return 0, false
		}
		return uint(parsed), true
	default:
		return 0, false
	}
}

func claimRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return normalizeRole(v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if role := normalizeRole(s); role != "" {
					return role
				}
			}
		}
	}
	return ""
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
