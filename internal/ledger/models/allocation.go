package models

import (
	"time"

	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
)

// AllocationStatus is a node in the allocation state machine:
//
//	pending --approve--> approved --disburse--> disbursed   (terminal)
//	pending --reject-->  rejected                           (terminal)
//	approved --revert--> pending
type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "pending"
	AllocationApproved  AllocationStatus = "approved"
	AllocationRejected  AllocationStatus = "rejected"
	AllocationDisbursed AllocationStatus = "disbursed"
)

// statusEdges lists the moves SetAllocationStatus may make. Disbursed is only
// reachable through a disbursement, so it never appears as a target here.
var statusEdges = map[AllocationStatus][]AllocationStatus{
	AllocationPending:  {AllocationApproved, AllocationRejected},
	AllocationApproved: {AllocationPending},
}

func ParseAllocationStatus(s string) (AllocationStatus, error) {
	switch st := AllocationStatus(s); st {
	case AllocationPending, AllocationApproved, AllocationRejected, AllocationDisbursed:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown allocation status: "+s)
}

// CanTransitionTo reports whether a manual status change from s to next is legal.
func (s AllocationStatus) CanTransitionTo(next AllocationStatus) bool {
	for _, allowed := range statusEdges[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition of any kind exists.
func (s AllocationStatus) IsTerminal() bool {
	return s == AllocationDisbursed || s == AllocationRejected
}

// Allocation binds one donation's funds to a receiver.
//
// Invariants:
//   - exactly one allocation per donation, created with it
//   - Amount equals the donation amount
//   - Status follows the state machine above
type Allocation struct {
	ID         domain.AllocationID `json:"id"`
	DonationID domain.DonationID   `json:"donation_id"`
	CampaignID domain.CampaignID   `json:"campaign_id"`
	ReceiverID domain.ReceiverID   `json:"receiver_id"`
	Amount     money.Amount        `json:"amount"`
	Status     AllocationStatus    `json:"status"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewAllocation builds the pending allocation paired with a fresh donation.
func NewAllocation(d *Donation, receiverID domain.ReceiverID) *Allocation {
	return &Allocation{
		DonationID: d.ID,
		CampaignID: d.CampaignID,
		ReceiverID: receiverID,
		Amount:     d.Amount,
		Status:     AllocationPending,
		UpdatedAt:  d.DonatedAt,
	}
}

// CanSetStatus validates a manual status change.
func (a *Allocation) CanSetStatus(next AllocationStatus) error {
	if !a.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			"allocation cannot move from "+string(a.Status)+" to "+string(next))
	}
	return nil
}

// ApplyStatus sets the status. Call CanSetStatus first.
func (a *Allocation) ApplyStatus(next AllocationStatus, now time.Time) {
	a.Status = next
	a.UpdatedAt = now
}

// CanDisburse validates that amount may be paid out against this allocation.
func (a *Allocation) CanDisburse(amount money.Amount) error {
	if a.Status != AllocationApproved {
		return dErrors.New(dErrors.CodeInvalidTransition, "allocation is not approved")
	}
	if !a.Amount.Equal(amount) {
		return dErrors.New(dErrors.CodeAmountMismatch,
			"disbursement amount "+amount.String()+" must equal allocation amount "+a.Amount.String())
	}
	return nil
}

// ApplyDisbursed marks the allocation paid. Call CanDisburse first.
func (a *Allocation) ApplyDisbursed(now time.Time) {
	a.Status = AllocationDisbursed
	a.UpdatedAt = now
}
