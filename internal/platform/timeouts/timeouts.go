// Package timeouts defines shared timeout constants used across the service.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WebSocketWrite caps one live-event frame write to a client connection.
const WebSocketWrite = 2 * time.Second

// RedisDial caps the initial Redis connectivity check.
const RedisDial = 2 * time.Second

// EventPublish caps one relationship event publish to the event log.
const EventPublish = 3 * time.Second
