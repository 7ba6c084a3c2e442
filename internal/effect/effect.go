// Package effect defines the unit of intended change flowing through the
// autonomy core. Effects are produced upstream by the reasoning pipeline and
// consumed exactly once by the write-authority gate; nothing in this module
// mutates them after construction.
package effect

import "github.com/google/uuid"

// #region enums

// Type enumerates the kinds of change an effect can request.
type Type string

const (
	TypeCreate Type = "create"
	TypeUpdate Type = "update"
	TypeDelete Type = "delete"
	TypeDerive Type = "derive"
)

// Source identifies which surface produced the effect.
type Source string

const (
	SourceDailyRun Source = "daily_run"
	SourceVoice    Source = "voice"
	SourceManual   Source = "manual"
	SourceRecovery Source = "recovery"
)

// #endregion enums

// #region effect

// Effect is a single candidate action the assistant wants to perform.
// Confidence comes from the upstream reasoning pipeline and is trusted as-is.
type Effect struct {
	ID         string         `json:"id"`
	Domain     string         `json:"domain"`
	Type       Type           `json:"effect_type"`
	TargetRef  string         `json:"target_ref,omitempty"`
	Payload    map[string]any `json:"payload"`
	Confidence float32        `json:"confidence"`
	Source     Source         `json:"source"`
}

// New builds an effect with a fresh ID.
func New(domain string, typ Type, payload map[string]any, confidence float32, source Source) Effect {
	return Effect{
		ID:         uuid.New().String(),
		Domain:     domain,
		Type:       typ,
		Payload:    payload,
		Confidence: confidence,
		Source:     source,
	}
}

// #endregion effect
