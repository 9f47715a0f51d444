package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/content-gateway/pkg/api"
)

const credentialKey = "credential"

// BearerToken strips the "Bearer " scheme and surrounding whitespace.
// A header without the scheme is taken as the token itself.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "Bearer ") {
		header = header[7:]
	} else if strings.EqualFold(header, "Bearer") {
		return ""
	}
	return strings.TrimSpace(header)
}

// Credential extracts the caller's upstream key. When allowEmpty reports
// true a missing key is tolerated and the provider's server key is used.
func Credential(allowEmpty func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" && (allowEmpty == nil || !allowEmpty()) {
			_ = c.Error(api.Unauthorized(api.MsgMissingAPIKey))
			c.Abort()
			return
		}
		c.Set(credentialKey, token)
		c.Next()
	}
}

// GetCredential returns the key stored by Credential.
func GetCredential(c *gin.Context) string {
	return c.GetString(credentialKey)
}

// AdminAuth guards operator endpoints with static keys.
func AdminAuth(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			_ = c.Error(api.Unauthorized("Missing Authorization header"))
			c.Abort()
			return
		}
		for _, k := range keys {
			if k != "" && subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
				c.Next()
				return
			}
		}
		_ = c.Error(api.Unauthorized("Invalid API Key"))
		c.Abort()
	}
}
