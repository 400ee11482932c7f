package models

import (
	"strings"
	"time"

	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
)

// RecordDonationRequest is the payload for recording a donation.
type RecordDonationRequest struct {
	CampaignID domain.CampaignID `json:"campaign_id"`
	Amount     money.Amount      `json:"amount"`
	// DonorID lets an Admin record on behalf of a donor. Donors may only
	// leave it empty or name themselves.
	DonorID domain.ActorID `json:"donor_id,omitempty"`
	// ReceiverID pins the allocation to a receiver instead of the
	// configured assignment rule.
	ReceiverID domain.ReceiverID `json:"receiver_id,omitempty"`
}

func (r *RecordDonationRequest) Validate() error {
	if r.CampaignID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "campaign_id is required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	return nil
}

// SetAllocationStatusRequest is the payload for a manual status change.
type SetAllocationStatusRequest struct {
	Status string `json:"status"`
}

// RecordDisbursementRequest is the payload for paying out an allocation.
type RecordDisbursementRequest struct {
	AllocationID domain.AllocationID `json:"allocation_id"`
	Amount       money.Amount        `json:"amount"`
	PaymentRef   string              `json:"payment_ref"`
}

func (r *RecordDisbursementRequest) Normalize() {
	r.PaymentRef = strings.TrimSpace(r.PaymentRef)
}

func (r *RecordDisbursementRequest) Validate() error {
	if r.AllocationID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "allocation_id is required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if r.PaymentRef == "" {
		return dErrors.New(dErrors.CodeValidation, "payment_ref is required")
	}
	return nil
}

// AttachDocumentRequest is the payload for attaching evidence.
type AttachDocumentRequest struct {
	DisbursementID domain.DisbursementID `json:"disbursement_id"`
	StorageLocator string                `json:"storage_locator"`
	ContentHash    string                `json:"content_hash"`
}

func (r *AttachDocumentRequest) Normalize() {
	r.StorageLocator = strings.TrimSpace(r.StorageLocator)
	r.ContentHash = strings.TrimSpace(r.ContentHash)
}

func (r *AttachDocumentRequest) Validate() error {
	if r.DisbursementID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "disbursement_id is required")
	}
	if r.ContentHash == "" {
		return dErrors.New(dErrors.CodeMissingHash, "content hash is required for integrity")
	}
	if r.StorageLocator == "" {
		return dErrors.New(dErrors.CodeValidation, "storage_locator is required")
	}
	return nil
}

// CreateCampaignRequest is the payload for opening a campaign.
type CreateCampaignRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// CreateReceiverRequest is the payload for registering a receiver.
type CreateReceiverRequest struct {
	Name               string `json:"name"`
	Category           string `json:"category"`
	PaymentDestination string `json:"payment_destination"`
}

func (r *CreateReceiverRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.TrimSpace(r.Category)
	r.PaymentDestination = strings.TrimSpace(r.PaymentDestination)
}

func (r *CreateReceiverRequest) Validate() error {
	if r.Name == "" || r.Category == "" || r.PaymentDestination == "" {
		return dErrors.New(dErrors.CodeValidation, "name, category and payment_destination are required")
	}
	return nil
}
