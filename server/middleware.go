package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// httpsEnforcement redirects plain-HTTP requests that arrived through a
// TLS-terminating proxy (detected via X-Forwarded-Proto) and stamps the
// HSTS header on responses that were served over HTTPS. TLS termination
// itself is a deployment concern; this only honors what the proxy reports.
func (s *Server) httpsEnforcement() gin.HandlerFunc {
	return func(c *gin.Context) {
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" && strings.ToLower(proto) != "https" {
			target := "https://" + c.Request.Host + c.Request.URL.RequestURI()
			c.Redirect(http.StatusPermanentRedirect, target)
			c.Abort()
			return
		}

		// Headers must be staged before a handler writes the response;
		// anything set after the status line is flushed never reaches
		// the client.
		if clientScheme(c) == "https" {
			c.Header("Strict-Transport-Security",
				fmt.Sprintf("max-age=%d; includeSubDomains; preload", s.settings.HSTSMaxAge))
		}

		c.Next()
	}
}

// clientScheme reports the effective scheme of the request.
func clientScheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(proto)
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
