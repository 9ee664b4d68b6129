package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxAccountClaims = "pb_account_claims"

// RequireToken returns a Gin middleware that enforces a valid Bearer session
// token. On success it injects the *AccountClaims into the context.
func RequireToken(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxAccountClaims, claims)
		c.Next()
	}
}

// RequireRole returns a Gin middleware that enforces a valid session token
// carrying one of the given roles.
func RequireRole(tokens *TokenIssuer, roles ...Role) gin.HandlerFunc {
	require := RequireToken(tokens)
	return func(c *gin.Context) {
		require(c)
		if c.IsAborted() {
			return
		}
		claims := ClaimsFromCtx(c)
		if claims == nil || !claims.Role.AnyOf(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient role",
			})
			return
		}
		c.Next()
	}
}

// ClaimsFromCtx retrieves the account claims injected by RequireToken.
// Returns nil if no session token is present in the context.
func ClaimsFromCtx(c *gin.Context) *AccountClaims {
	v, _ := c.Get(ctxAccountClaims)
	claims, _ := v.(*AccountClaims)
	return claims
}
