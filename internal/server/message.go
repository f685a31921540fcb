package server

import (
	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/session"
)

// AssistanceMessage is pushed to the renderer after every state change.
type AssistanceMessage struct {
	Type           string          `json:"type"`
	SessionID      string          `json:"session_id"`
	State          string          `json:"state"`
	Explanation    string          `json:"explanation,omitempty"`
	SimplifiedText string          `json:"simplified_text,omitempty"`
	RegionID       string          `json:"region_id,omitempty"`
	Emotion        string          `json:"emotion"`
	Overlay        *model.PixelBox `json:"overlay,omitempty"`
	Pending        bool            `json:"pending"`
	AtMs           int64           `json:"at_ms"`
}

// NewAssistanceMessage converts a session update for the wire.
func NewAssistanceMessage(u session.Update) AssistanceMessage {
	return AssistanceMessage{
		Type:           "assistance",
		SessionID:      u.SessionID,
		State:          u.State.Kind.String(),
		Explanation:    u.State.Explanation,
		SimplifiedText: u.State.SimplifiedText,
		RegionID:       u.RegionID,
		Emotion:        u.Emotion,
		Overlay:        u.Overlay,
		Pending:        u.Pending,
		AtMs:           u.At,
	}
}
