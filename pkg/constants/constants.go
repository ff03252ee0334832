package constants

import "time"

const (
	RequestIDLength  = 16
	CloseMessageCode = 1000
	DefaultWSTimeout = 30 * time.Second
	// DefaultTokenTTL bounds tokens issued for remote store sessions.
	DefaultTokenTTL  = 24 * time.Hour
)

var (
	MemoryScheme          = "memory"
	WebsocketScheme       = "ws"
	WebsocketSecureScheme = "wss"
	PostgresScheme        = "postgres"
	PostgresAltScheme     = "postgresql"
)
