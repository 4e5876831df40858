package store

import "time"

// Config selects and configures the backends
type Config struct {
	PG PGConfig
	CH CHConfig
}

// PGConfig configures the Postgres pool
type PGConfig struct {
	Enabled  bool
	URL      string
	MaxConns int32

	// LogSQL logs every statement; slow ones are logged regardless
	LogSQL    bool
	SlowQuery time.Duration

	// ConnectRetries and PingTimeout bound the startup wait for a healthy pool
	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures the ClickHouse connection
type CHConfig struct {
	Enabled bool
	URL     string

	// ClientName and ClientTag show up in system.query_log
	ClientName string
	ClientTag  string
}
