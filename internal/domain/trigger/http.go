package trigger

import "net/http"

// FromHTTPRequest builds a lifecycle trigger for a session opened over HTTP.
// Only the first value of each header and query parameter is kept.
func FromHTTPRequest(route, connectionID string, r *http.Request) *Trigger {
	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	return NewLifecycle(route, connectionID, headers, query)
}
