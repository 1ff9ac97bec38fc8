package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderProcessTime reports how long the server spent on a request, in seconds.
const HeaderProcessTime = "X-Process-Time"

// ProcessTime returns middleware that sets HeaderProcessTime. The header is
// written just before the response headers are flushed, so it covers the
// handler and every middleware after this one.
func ProcessTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &processTimeWriter{ResponseWriter: c.Writer, start: time.Now()}
		c.Writer = w

		c.Next()

		// Status-only responses are flushed by gin after the chain returns.
		if !w.Written() {
			w.stamp()
		}
	}
}

// processTimeWriter stamps the elapsed time on the first header write.
type processTimeWriter struct {
	gin.ResponseWriter

	start   time.Time
	stamped bool
}

func (w *processTimeWriter) stamp() {
	if w.stamped {
		return
	}

	w.stamped = true
	w.Header().Set(HeaderProcessTime, strconv.FormatFloat(time.Since(w.start).Seconds(), 'f', 6, 64))
}

func (w *processTimeWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *processTimeWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *processTimeWriter) Write(data []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(data)
}

func (w *processTimeWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}
