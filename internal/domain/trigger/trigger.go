// Package trigger models the inbound invocation payloads the relay reacts to
// and the response every invocation produces.
//
// A Trigger is either a WebSocket lifecycle event (connect or disconnect) or
// a batch of stream records carrying face-search results. Classification
// relies on which members are present, never on zero values.
package trigger

import (
	"encoding/json"
	"net/http"
)

// Route keys carried by WebSocket lifecycle triggers.
const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
)

// AuthorizationKey is the header and query parameter carrying the credential.
const AuthorizationKey = "Authorization"

// Trigger is one invocation's input.
type Trigger struct {
	RequestContext        *RequestContext   `json:"requestContext,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	Records               []StreamRecord    `json:"Records,omitempty"`
}

// RequestContext identifies the WebSocket session and the lifecycle route.
type RequestContext struct {
	ConnectionID string  `json:"connectionId"`
	RouteKey     *string `json:"routeKey,omitempty"`

	// set when routeKey is present in the decoded JSON, even as null or a
	// non-string value
	routeKeyPresent bool
}

// UnmarshalJSON records whether routeKey was present. A null or non-string
// route key keeps RouteKey nil but still marks the context as lifecycle.
func (r *RequestContext) UnmarshalJSON(data []byte) error {
	type plain RequestContext
	var aux struct {
		plain
		RouteKey json.RawMessage `json:"routeKey"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = RequestContext(aux.plain)
	r.RouteKey = nil
	r.routeKeyPresent = aux.RouteKey != nil
	if r.routeKeyPresent {
		var key string
		if err := json.Unmarshal(aux.RouteKey, &key); err == nil && string(aux.RouteKey) != "null" {
			r.RouteKey = &key
		}
	}
	return nil
}

// StreamRecord is one record of a stream batch.
type StreamRecord struct {
	Kinesis *KinesisData `json:"kinesis,omitempty"`
}

// KinesisData holds the base64 encoded record payload.
type KinesisData struct {
	PartitionKey   string `json:"partitionKey,omitempty"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	Data           string `json:"data"`
}

// IsLifecycle reports whether the trigger carries a request context with a
// route key member.
func (t *Trigger) IsLifecycle() bool {
	return t.RequestContext != nil &&
		(t.RequestContext.RouteKey != nil || t.RequestContext.routeKeyPresent)
}

// IsStreamBatch reports whether the trigger carries a non-empty record list
// whose first record is stream shaped.
func (t *Trigger) IsStreamBatch() bool {
	return len(t.Records) > 0 && t.Records[0].Kinesis != nil
}

// RouteKey returns the lifecycle route, or "" when absent or not a string.
func (t *Trigger) RouteKey() string {
	if t.RequestContext == nil || t.RequestContext.RouteKey == nil {
		return ""
	}
	return *t.RequestContext.RouteKey
}

// ConnectionID returns the lifecycle connection identifier, or "" when absent.
func (t *Trigger) ConnectionID() string {
	if t.RequestContext == nil {
		return ""
	}
	return t.RequestContext.ConnectionID
}

// NewLifecycle builds a WebSocket lifecycle trigger.
func NewLifecycle(route, connectionID string, headers, query map[string]string) *Trigger {
	return &Trigger{
		RequestContext: &RequestContext{
			ConnectionID: connectionID,
			RouteKey:     &route,
		},
		Headers:               headers,
		QueryStringParameters: query,
	}
}

// Response is the result of one invocation.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body,omitempty"`
}

// Canonical responses.
var (
	Unauthorized   = Response{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}
	InvalidToken   = Response{StatusCode: http.StatusForbidden, Body: "Invalid token"}
	Connected      = Response{StatusCode: http.StatusOK, Body: "Connected"}
	Disconnected   = Response{StatusCode: http.StatusOK}
	InvalidRequest = Response{StatusCode: http.StatusBadRequest, Body: "Invalid request"}
	NoFaceDetected = Response{StatusCode: http.StatusOK, Body: "No face detected"}
	MessageSent    = Response{StatusCode: http.StatusOK, Body: "Message sent"}
	UnknownEvent   = Response{StatusCode: http.StatusBadRequest, Body: "Unknown event"}
)

// OK reports whether the response signals success.
func (r Response) OK() bool {
	return r.StatusCode == http.StatusOK
}
