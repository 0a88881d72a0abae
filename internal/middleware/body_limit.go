package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimitMiddleware caps the request body at maxBytes before anything
// buffers it. Applied to the upload routes so an oversized file fails
// with a clear 413 while streaming, not after the whole body is read.
// Handlers detect the cap via http.MaxBytesError when parsing the form.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
