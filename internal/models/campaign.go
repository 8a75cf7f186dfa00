package models

import "time"

type RunStatus string

const (
	RunStopped   RunStatus = "STOPPED"
	RunRunning   RunStatus = "RUNNING"
	RunPaused    RunStatus = "PAUSED"
	RunCompleted RunStatus = "COMPLETED"
)

// CampaignState is the singleton row driving the whole engine.
type CampaignState struct {
	RunStatus      RunStatus  `json:"run_status"`
	SentToday      int        `json:"sent_today"`
	DailyLimit     int        `json:"daily_limit"`
	LastResetDate  string     `json:"last_reset_date"` // YYYY-MM-DD
	ReplyWatermark *time.Time `json:"reply_watermark,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ActivityLogEntry struct {
	ID        int64     `json:"id"`
	LeadEmail string    `json:"lead_email,omitempty"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

type Template struct {
	Stage     Stage     `json:"stage"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}
