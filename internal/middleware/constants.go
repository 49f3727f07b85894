// File: internal/middleware/constants.go
package middleware

// Context keys for middleware communication
type contextKey string

const (
	RequestIDKey   contextKey = "request_id"
	RelayPeerKey   contextKey = "relay_peer"
	RelayServerKey contextKey = "relay_server"
)

// Logger is what the middleware logs through.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
