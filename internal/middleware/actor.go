package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Iyabivuz-e/SomaAI/internal/pkg/jwt"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

const (
	ContextKeyActorID = "actor_id"
	ContextKeyRole    = "actor_role"

	actorHeader    = "X-Actor-ID"
	AnonymousActor = "anonymous"
	maxActorLength = 128
)

// Actor resolves who is calling. A Bearer token wins over the X-Actor-ID
// header; requests with neither run as "anonymous". An invalid token is
// rejected rather than downgraded.
func Actor(signer *jwt.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := NormalizeToken(c.GetHeader("Authorization")); token != "" && signer != nil {
			claims, err := signer.Parse(token)
			if err != nil {
				response.Unauthorized(c)
				return
			}
			c.Set(ContextKeyActorID, claims.ActorID)
			c.Set(ContextKeyRole, claims.Role)
			c.Next()
			return
		}

		id := strings.TrimSpace(c.GetHeader(actorHeader))
		if id == "" || len(id) > maxActorLength {
			id = AnonymousActor
		}
		c.Set(ContextKeyActorID, id)
		c.Next()
	}
}

// ActorID returns the resolved actor, "anonymous" when Actor did not run.
func ActorID(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyActorID); ok {
		if id, _ := v.(string); id != "" {
			return id
		}
	}
	return AnonymousActor
}

// ActorRole is only set for token-authenticated requests.
func ActorRole(c *gin.Context) string {
	v, _ := c.Get(ContextKeyRole)
	role, _ := v.(string)
	return role
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
