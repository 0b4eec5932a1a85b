package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/expo25/eventpass/utils"
)

const (
	// ContextSessionTokenKey stores the attendee session token in Gin context.
	ContextSessionTokenKey = "session_token"
	// ContextSessionKey stores the resolved attendee session.
	ContextSessionKey = "session"
)

// SessionRequired resolves the attendee session from the X-Session-Token
// header and aborts when it is missing or unknown.
func SessionRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimSpace(ctx.GetHeader("X-Session-Token"))
		if token == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "session token missing")
			ctx.Abort()
			return
		}

		session, ok := utils.GetSession(token)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "session expired or unknown")
			ctx.Abort()
			return
		}

		ctx.Set(ContextSessionTokenKey, token)
		ctx.Set(ContextSessionKey, session)
		ctx.Next()
	}
}

// AdminRequired ensures the request carries a valid admin JWT. The token is
// read from the Authorization header, or from the token query parameter for
// EventSource connections that cannot set headers.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString := bearerToken(ctx)
		if tokenString == "" {
			tokenString = strings.TrimSpace(ctx.Query("token"))
		}
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "authorization missing")
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil || claims.Role != utils.RoleAdmin {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) string {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
