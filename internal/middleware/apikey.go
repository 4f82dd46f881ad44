package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

const apiKeyHeader = "X-API-Key"

// APIKey guards a route group with the configured keys. Entries that look
// like bcrypt hashes are compared with bcrypt, anything else verbatim.
// With no keys configured the guard lets everything through.
func APIKey(keys []string) gin.HandlerFunc {
	var plain, hashed []string
	for _, k := range keys {
		k = strings.TrimSpace(k)
		switch {
		case k == "":
		case isBcryptHash(k):
			hashed = append(hashed, k)
		default:
			plain = append(plain, k)
		}
	}
	if len(plain) == 0 && len(hashed) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		got := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if got == "" || !matchKey(got, plain, hashed) {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

// HashAPIKey returns the bcrypt form of key for use in auth.api_keys.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func matchKey(got string, plain, hashed []string) bool {
	for _, k := range plain {
		if subtle.ConstantTimeCompare([]byte(got), []byte(k)) == 1 {
			return true
		}
	}
	for _, h := range hashed {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(got)) == nil {
			return true
		}
	}
	return false
}

func isBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
