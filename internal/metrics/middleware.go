package metrics

import (
	"net/http"
	"time"
)

// roundTripper wraps an http.RoundTripper to record provider request metrics.
type roundTripper struct {
	next http.RoundTripper
	reg  *Registry
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	rt.reg.RecordProviderRequest(req.URL.Host, status, duration)
	return resp, err
}

// Transport returns a RoundTripper that records metrics for every request
// sent through next. A nil next uses http.DefaultTransport.
func Transport(reg *Registry, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{next: next, reg: reg}
}
