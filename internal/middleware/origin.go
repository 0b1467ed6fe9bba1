package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"telemetry-broker/internal/ingest"
)

// PrivateOrigin rejects every request whose transport peer is not a
// private or loopback address. It looks only at the socket peer, never at
// forwarding headers.
func PrivateOrigin(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if err := ingest.CheckOrigin(c.Request.RemoteAddr); err != nil {
			status := http.StatusForbidden
			var ae *ingest.AdmissionError
			if errors.As(err, &ae) {
				status = ae.Kind.Status()
			}
			logger.Warn("request from disallowed origin",
				zap.String("peer", c.Request.RemoteAddr),
				zap.String("path", c.Request.URL.Path),
			)
			c.String(status, err.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}
