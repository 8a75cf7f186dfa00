package models

import (
	"fmt"
	"time"
)

type LeadStatus string

const (
	StatusPending       LeadStatus = "PENDING"
	StatusSent          LeadStatus = "SENT"
	StatusFollowup1Sent LeadStatus = "FOLLOWUP1_SENT"
	StatusFollowup2Sent LeadStatus = "FOLLOWUP2_SENT"
	StatusReplied       LeadStatus = "REPLIED"
	StatusFailed        LeadStatus = "FAILED"
)

// Terminal reports whether no further automated send may touch the lead.
func (s LeadStatus) Terminal() bool {
	return s == StatusReplied || s == StatusFailed
}

type Stage string

const (
	StageInitial      Stage = "initial"
	StageFollowup1    Stage = "followup1"
	StageFollowup2    Stage = "followup2"
	StageAutoResponse Stage = "reply-autoresponse"
)

type Lead struct {
	ID            int64             `json:"id"`
	Email         string            `json:"email"`
	Attributes    map[string]string `json:"attributes"`
	Status        LeadStatus        `json:"status"`
	FollowupCount int               `json:"followup_count"`
	LastSentAt    *time.Time        `json:"last_sent_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NextStage maps the lead's current position in the sequence to the stage
// of its next outbound message.
func (l *Lead) NextStage() (Stage, error) {
	switch {
	case l.Status == StatusPending:
		return StageInitial, nil
	case l.Status == StatusSent && l.FollowupCount == 0:
		return StageFollowup1, nil
	case l.Status == StatusFollowup1Sent && l.FollowupCount == 1:
		return StageFollowup2, nil
	}
	return "", fmt.Errorf("lead %s has no next stage (status=%s followups=%d)",
		l.Email, l.Status, l.FollowupCount)
}

// StatusAfter returns the lead status resulting from a successful send at
// the given stage.
func StatusAfter(stage Stage) LeadStatus {
	switch stage {
	case StageInitial:
		return StatusSent
	case StageFollowup1:
		return StatusFollowup1Sent
	default:
		return StatusFollowup2Sent
	}
}
