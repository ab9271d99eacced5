// Package events defines the call-event outbox for downstream collaborators.
package events

// Call event types consumed by the reporting and recording collaborators.
const (
	EventLeadsClaimed = "leads.claimed"
	EventCallDisposed = "call.disposed"
)

// CallDisposedPayload captures the minimal data needed to roll up one
// recorded disposition downstream.
type CallDisposedPayload struct {
	DispositionID  string `json:"disposition_id"`
	LeadID         string `json:"lead_id"`
	PoolID         string `json:"pool_id"`
	AgentID        string `json:"agent_id"`
	ResultCategory string `json:"result_category"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p CallDisposedPayload) ToMap() map[string]any {
	return map[string]any{
		"disposition_id":  p.DispositionID,
		"lead_id":         p.LeadID,
		"pool_id":         p.PoolID,
		"agent_id":        p.AgentID,
		"result_category": p.ResultCategory,
	}
}

// LeadsClaimedPayload announces a served claim batch.
type LeadsClaimedPayload struct {
	PoolID  string `json:"pool_id"`
	AgentID string `json:"agent_id"`
	Count   int    `json:"count"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p LeadsClaimedPayload) ToMap() map[string]any {
	return map[string]any{
		"pool_id":  p.PoolID,
		"agent_id": p.AgentID,
		"count":    p.Count,
	}
}
