package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP (outbound)
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"outreach@coldreach.io"`

	// ----------------------------
	// IMAP (inbound)
	// ----------------------------
	IMAPHost string `envconfig:"IMAP_HOST" default:"localhost"`
	IMAPPort int    `envconfig:"IMAP_PORT" default:"993"`

	// ----------------------------
	// Sending limits & pacing
	// ----------------------------
	DailyLimit        int           `envconfig:"DAILY_EMAIL_LIMIT" default:"500"`
	Followup1Interval time.Duration `envconfig:"FOLLOWUP1_INTERVAL" default:"72h"`
	Followup2Interval time.Duration `envconfig:"FOLLOWUP2_INTERVAL" default:"72h"`
	MinSendDelay      time.Duration `envconfig:"MIN_SEND_DELAY" default:"60s"`
	MaxSendDelay      time.Duration `envconfig:"MAX_SEND_DELAY" default:"120s"`
	PauseEveryN       int           `envconfig:"PAUSE_EVERY_N_EMAILS" default:"20"`
	PauseMin          time.Duration `envconfig:"PAUSE_MIN" default:"5m"`
	PauseMax          time.Duration `envconfig:"PAUSE_MAX" default:"8m"`
	SendRateCeiling   float64       `envconfig:"SEND_RATE_CEILING" default:"1"`

	// ----------------------------
	// Scheduler intervals
	// ----------------------------
	QueueTick      time.Duration `envconfig:"QUEUE_TICK_INTERVAL" default:"30s"`
	ReplyTick      time.Duration `envconfig:"REPLY_TICK_INTERVAL" default:"5m"`
	DailyResetTick time.Duration `envconfig:"DAILY_RESET_TICK_INTERVAL" default:"1m"`

	// ----------------------------
	// Auto-response
	// ----------------------------
	CalendarLink string `envconfig:"CALENDAR_LINK" default:"https://calendly.com/your-link"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func Load() (*Config, error) {
	// Optional .env for local runs; OS environment wins in production.
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
