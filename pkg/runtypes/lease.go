package runtypes

import "time"

// SandboxLease is the KV-backed liveness record for one sandbox (§3,
// §4.2). Its key is "sandbox:heartbeat:<SandboxID>"; absence of the key
// means the sandbox is considered dead regardless of what the remote
// backend reports.
type SandboxLease struct {
	SandboxID    string    `json:"sandboxId"`
	LastActivity time.Time `json:"lastActivity"`
	TTL          time.Duration `json:"ttl"`
}

// SandboxStatus reports the liveness of one sandbox (§4.2 getStatus).
type SandboxStatus struct {
	Active       bool      `json:"active"`
	SandboxID    string    `json:"sandboxId"`
	Uptime       time.Duration `json:"uptime"`
	LastActivity time.Time `json:"lastActivity"`
	Reusable     bool      `json:"reusable"`
}
