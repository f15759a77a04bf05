package anthropic

import (
	"errors"
	"net"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// IsTransient reports whether err is an API or network failure that is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 408, 429, 500, 502, 503, 504, 529:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
