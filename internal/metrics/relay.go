package metrics

import "strconv"

// Series used across the gateway.

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// InboundMessages counts inbound messages by pipeline outcome.
func InboundMessages(outcome string) *Counter {
	return Default.Counter("wagateway_inbound_messages_total",
		"Inbound messages by pipeline outcome", Labels("outcome", outcome))
}

// OutboundCommands counts gateway commands by operation and result.
func OutboundCommands(op, result string) *Counter {
	return Default.Counter("wagateway_outbound_commands_total",
		"Outbound commands by operation and result", Labels("op", op, "result", result))
}

// HTTPRequests counts gateway HTTP requests by route and status code.
func HTTPRequests(route string, code int) *Counter {
	return Default.Counter("wagateway_http_requests_total",
		"Gateway HTTP requests by route and status", Labels("route", route, "code", strconv.Itoa(code)))
}

// SessionEvents counts session lifecycle events by kind.
func SessionEvents(kind string) *Counter {
	return Default.Counter("wagateway_session_events_total",
		"Session lifecycle events by kind", Labels("kind", kind))
}

// BackendLatency tracks backend webhook call duration.
var BackendLatency = Default.Histogram("wagateway_backend_latency_seconds",
	"Backend webhook latency in seconds", "", latencyBuckets)
