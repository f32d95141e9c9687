package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderRequestID is the header carrying the request correlation id.
const HeaderRequestID = "X-Request-ID"

// GinMiddleware tags every request with a request id, stores a child
// logger carrying it in the request context, and logs the completed
// request. 5xx responses log at error level and 4xx at warn. Requests to
// quietPaths log at debug so health probes stay out of info output.
func GinMiddleware(logger zerolog.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(HeaderRequestID, reqID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		switch _, isQuiet := quiet[c.Request.URL.Path]; {
		case status >= 500:
			evt = child.Error()
		case status >= 400:
			evt = child.Warn()
		case isQuiet:
			evt = child.Debug()
		default:
			evt = child.Info()
		}

		evt = evt.Int(FieldStatus, status).
			Int64(FieldLatency, time.Since(start).Milliseconds())

		// Set by the auth middleware during c.Next().
		if userID := c.GetString(FieldUserID); userID != "" {
			evt = evt.Str(FieldUserID, userID)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			evt = evt.Str("errors", errs.String())
		}

		evt.Msg("request completed")
	}
}
