package fetcher

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// DownloadError is returned for every failed fetch: transport errors, timeouts and
// non-200 responses. Callers treat it as a partial source failure.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// IsDownloadError reports whether err (or anything it wraps) is a *DownloadError.
func IsDownloadError(err error) bool {
	var de *DownloadError
	return errors.As(err, &de)
}

// IsTransient returns true for failures that are worth another attempt:
// 429 and 5xx responses, network timeouts and connection resets.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var de *DownloadError
	if errors.As(err, &de) && de.StatusCode != 0 {
		return IsTransientHTTPStatus(de.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true for status codes that indicate a transient
// server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
