package llm

import "errors"

// Failure classes of a translation call. Auth failures are final;
// network and quota failures are transient and retried per preset.
var (
	// ErrAuth marks a missing or rejected credential. Never retried.
	ErrAuth = errors.New("authentication failed")
	// ErrQuota marks rate-limit or quota exhaustion at the endpoint.
	ErrQuota = errors.New("quota exceeded")
	// ErrNetwork marks transport failures, server errors and
	// unparseable responses.
	ErrNetwork = errors.New("network error")
)

// Retryable reports whether the failure class may succeed on retry.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrQuota)
}

// classifyStatus maps an HTTP status code to a failure class.
func classifyStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 402 || status == 429:
		return ErrQuota
	default:
		return ErrNetwork
	}
}
