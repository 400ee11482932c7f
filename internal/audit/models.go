package audit

import (
	"encoding/json"
	"time"

	"donation-ledger/pkg/domain"
)

// Action names the state-changing operation an entry records.
type Action string

const (
	ActionCampaignCreated         Action = "campaign_created"
	ActionReceiverCreated         Action = "receiver_created"
	ActionDonationRecorded        Action = "donation_recorded"
	ActionDonationVerified        Action = "donation_verified"
	ActionAllocationStatusChanged Action = "allocation_status_changed"
	ActionDisbursementRecorded    Action = "disbursement_recorded"
	ActionDocumentAttached        Action = "document_attached"
)

// EntityType names the table an entry's target lives in.
type EntityType string

const (
	EntityCampaign     EntityType = "campaign"
	EntityReceiver     EntityType = "receiver"
	EntityDonation     EntityType = "donation"
	EntityAllocation   EntityType = "allocation"
	EntityDisbursement EntityType = "disbursement"
	EntityDocument     EntityType = "document"
)

// IsValid reports whether t names one of the audited entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityCampaign, EntityReceiver, EntityDonation, EntityAllocation, EntityDisbursement, EntityDocument:
		return true
	}
	return false
}

// Entry is one immutable audit record. Seq is assigned by the store and
// totally orders entries. OccurredAt is stamped by the store when the entry
// is written and does not decrease along Seq.
//
// Before and After are JSON objects keyed by entity name, for example
//
//	{"donation": {...}, "campaign_balance": "50.00"}
//
// so an entry captures every row the operation touched. Either may be null
// (creation has no before).
type Entry struct {
	Seq        int64           `json:"seq"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    domain.ActorID  `json:"actor_id"`
	ActorRole  domain.Role     `json:"actor_role"`
	Action     Action          `json:"action"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
	RequestID  string          `json:"request_id,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored snapshots.
func (e Entry) Clone() Entry {
	out := e
	if e.Before != nil {
		out.Before = append(json.RawMessage(nil), e.Before...)
	}
	if e.After != nil {
		out.After = append(json.RawMessage(nil), e.After...)
	}
	return out
}

// EntryView adds the actor display name resolved at read time.
type EntryView struct {
	Entry
	ActorName string `json:"actor_name"`
}

// Snapshot is the named-part object serialized into Before/After.
type Snapshot map[string]any

// Filter narrows List. Zero fields match everything; From is inclusive and
// To exclusive.
type Filter struct {
	EntityType EntityType
	EntityID   string
	From       time.Time
	To         time.Time
	AfterSeq   int64
	Limit      int
}

func (f Filter) Matches(e *Entry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if !f.From.IsZero() && e.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.OccurredAt.Before(f.To) {
		return false
	}
	if e.Seq <= f.AfterSeq {
		return false
	}
	return true
}
