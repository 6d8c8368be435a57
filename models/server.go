package models

import "time"

// HeartbeatStaleAfter is how old a heartbeat may be before the server is
// treated as offline.
const HeartbeatStaleAfter = 60 * time.Second

// ServerRecord describes one registered game server instance.
type ServerRecord struct {
	ID            string    `json:"id" redis:"id"`
	Addr          string    `json:"addr" redis:"addr"`
	Version       string    `json:"version" redis:"version"`
	Connections   int       `json:"connections" redis:"connections"`
	LastHeartbeat time.Time `json:"lastHeartbeat" redis:"lastHeartbeat"`
}

// Online is derived from heartbeat age, never stored.
func (s ServerRecord) Online(now time.Time) bool {
	return now.Sub(s.LastHeartbeat) < HeartbeatStaleAfter
}
