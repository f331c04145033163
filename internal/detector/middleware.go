package detector

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
)

// Middleware records every request passing through next. Responses with a
// status of 400 or above and panics count as errors; 401 and 403 also count
// as authentication failures.
func Middleware(d *Detector, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := d.clock.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				d.RecordRequest(d.clock.Since(startedAt), true, "panic")
				panic(rec)
			}
		}()

		next.ServeHTTP(wrapped, r)

		status := wrapped.statusCode
		isError := status >= http.StatusBadRequest
		errorType := ""
		if isError {
			errorType = "HTTP_" + strconv.Itoa(status)
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			d.RecordAuthFailure(errorType)
		}
		d.RecordRequest(d.clock.Since(startedAt), isError, errorType)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Hijack passes websocket upgrades through the wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming responses working.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
