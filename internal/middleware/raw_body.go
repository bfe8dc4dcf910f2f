package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RawBodyKey holds the unparsed request body in Gin context
const RawBodyKey = "raw_body"

// RawBody reads the request body up to maxBytes and stores it untouched.
// Signature checks must run over these exact bytes.
func RawBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abortWith(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			abortWith(c, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
			return
		}

		c.Set(RawBodyKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// GetRawBody returns the bytes captured by RawBody
func GetRawBody(c *gin.Context) ([]byte, bool) {
	value, exists := c.Get(RawBodyKey)
	if !exists {
		return nil, false
	}
	body, ok := value.([]byte)
	return body, ok
}
