package model

import "time"

// Source is a registered upstream data producer.
type Source struct {
	ID     string
	Config *string
	Active bool
}

// Record is one queued telemetry payload waiting to be forwarded to the hub.
type Record struct {
	ID       int64
	SourceID string
	Data     []byte
	Sent     bool
}

// Setting is one key/value row of the settings table.
type Setting struct {
	Key   string
	Value string
}

// Credential is the hub access token together with its expiry. The two are
// always replaced together.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}
