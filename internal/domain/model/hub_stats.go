package model

import "time"

type HubStats struct {
	TotalConnections int           `json:"total_connections"`
	TotalTags        int           `json:"total_tags"`
	Uptime           time.Duration `json:"uptime"`
}
