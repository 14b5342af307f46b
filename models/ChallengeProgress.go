package models

import (
	"encoding/json"
	"time"
)

// Challenge progress statuses. Transitions are one-directional:
// available -> in_progress -> completed.
const (
	StatusAvailable  = "available"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ChallengeProgress represents a user's progress on a single challenge.
// Created lazily on first interaction, never deleted. The composite unique
// index guarantees one row per (namespace, user, challenge).
type ChallengeProgress struct {
	ID                    string     `gorm:"type:uuid;default:gen_random_uuid();primary_key" json:"id"`
	Namespace             string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_progress_user_challenge" json:"namespace"`
	UserID                string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_progress_user_challenge;column:user_id" json:"user_id"`
	ChallengeID           string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_progress_user_challenge;column:challenge_id" json:"challenge_id"`
	Status                string     `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	Attempts              int        `gorm:"type:integer;not null;default:0" json:"attempts"`
	FailedAttempts        int        `gorm:"type:integer;not null;default:0;column:failed_attempts" json:"failed_attempts"`
	HintsUsed             string     `gorm:"type:text;column:hints_used" json:"-"`
	HintsCost             int        `gorm:"type:integer;not null;default:0;column:hints_cost" json:"hints_cost"`
	FirstAttemptAt        *time.Time `gorm:"type:timestamp;column:first_attempt_at" json:"first_attempt_at"`
	CompletedAt           *time.Time `gorm:"type:timestamp;column:completed_at" json:"completed_at"`
	CompletionTimeSeconds *int       `gorm:"type:integer;column:completion_time_seconds" json:"completion_time_seconds"`
	CompletionEvidence    *string    `gorm:"type:text;column:completion_evidence" json:"-"`
	CompletionWorkflowID  *string    `gorm:"type:varchar(64);column:completion_workflow_id" json:"completion_workflow_id"`
	Challenge             *Challenge `gorm:"foreignKey:ChallengeID" json:"-"`
}

// UsedHintIndices decodes the JSON-encoded set of charged hint indices
func (p *ChallengeProgress) UsedHintIndices() []int {
	var indices []int
	if p.HintsUsed != "" {
		_ = json.Unmarshal([]byte(p.HintsUsed), &indices)
	}
	return indices
}

// HasUsedHint reports whether a hint index was already charged
func (p *ChallengeProgress) HasUsedHint(index int) bool {
	for _, i := range p.UsedHintIndices() {
		if i == index {
			return true
		}
	}
	return false
}

// MarkHintUsed records a hint index in the charged set
func (p *ChallengeProgress) MarkHintUsed(index int) {
	indices := append(p.UsedHintIndices(), index)
	encoded, _ := json.Marshal(indices)
	p.HintsUsed = string(encoded)
}
