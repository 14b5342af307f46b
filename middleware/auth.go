package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/steadhac/finbot-ctf/config"
)

const sessionKey = "session"

// Session identifies the authenticated caller: the isolated namespace their
// engagement runs in, and their user id within it.
type Session struct {
	Namespace string
	UserID    string
}

// AuthMiddleware validates the caller's JWT and stores the session on the
// context. The token comes from the Authorization Bearer header, or from the
// token query parameter for websocket upgrades that cannot set headers.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		session, err := parseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// GetSession returns the session stored by AuthMiddleware
func GetSession(c *gin.Context) Session {
	if value, exists := c.Get(sessionKey); exists {
		if session, ok := value.(Session); ok {
			return session
		}
	}
	return Session{}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func parseToken(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return Session{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("invalid token claims")
	}

	namespace, _ := claims["namespace"].(string)
	userID, _ := claims["user_id"].(string)
	if namespace == "" || userID == "" {
		return Session{}, fmt.Errorf("token missing namespace or user_id claim")
	}

	return Session{Namespace: namespace, UserID: userID}, nil
}
