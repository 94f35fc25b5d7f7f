package realtime

import "time"

const (
	// Max bytes per websocket frame read.
	maxFrameBytes = 64 << 10

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	defaultSendQueue    = 128
	defaultEventTimeout = 10 * time.Second

	// Per-connection rate limit (inbound events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
