package utils

import (
	"net/http"
	"time"

	"github.com/saavnstats/playwatch/shared"
)

type UARoundtripper struct {
	RT http.RoundTripper
}

func (uart *UARoundtripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", shared.USER_AGENT)
	rt := uart.RT
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}

// NewHTTPClient returns a client that always sends our browser UA and
// never hangs past the fetch budget.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &UARoundtripper{},
		Timeout:   timeout,
	}
}
