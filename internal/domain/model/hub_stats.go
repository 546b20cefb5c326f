package model

import "time"

type HubStats struct {
	TotalUsers       int           `json:"total_users"`
	TotalConnections int           `json:"total_connections"`
	DroppedEvents    uint64        `json:"dropped_events"`
	Uptime           time.Duration `json:"uptime"`
	Users            []UserStats   `json:"users,omitempty"`
}

type UserStats struct {
	UserID      string `json:"user_id"`
	Connections int    `json:"connections"`
	Dropped     uint64 `json:"dropped"`
}
