package models

import (
	"strings"
	"time"

	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"
)

// Campaign is a fundraising target. Balance is derived: verified donations
// minus disbursements, never negative, only changed by the accountant.
type Campaign struct {
	ID          domain.CampaignID `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
	CreatedBy   domain.ActorID    `json:"created_by"`
	Balance     money.Amount      `json:"balance"`
	CreatedAt   time.Time         `json:"created_at"`
}

// IsClosedAt reports whether donations are no longer accepted at now. The end
// date is inclusive through the end of that UTC day.
func (c *Campaign) IsClosedAt(now time.Time) bool {
	if c.EndDate == nil {
		return false
	}
	return !now.Before(c.EndDate.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour))
}

func NewCampaign(title, description string, start time.Time, end *time.Time, createdBy domain.ActorID, now time.Time) (*Campaign, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "campaign title is required")
	}
	if len(title) > 200 {
		return nil, dErrors.New(dErrors.CodeValidation, "campaign title must be 200 characters or less")
	}
	if start.IsZero() {
		start = now
	}
	if end != nil && end.Before(start.Truncate(24*time.Hour)) {
		return nil, dErrors.New(dErrors.CodeValidation, "campaign end date precedes start date")
	}
	return &Campaign{
		Title:       title,
		Description: strings.TrimSpace(description),
		StartDate:   start,
		EndDate:     end,
		CreatedBy:   createdBy,
		Balance:     money.Zero,
		CreatedAt:   now,
	}, nil
}

// Donation is a donor's contribution. Verified flips false→true exactly once.
type Donation struct {
	ID         domain.DonationID `json:"id"`
	DonorID    domain.ActorID    `json:"donor_id"`
	CampaignID domain.CampaignID `json:"campaign_id"`
	Amount     money.Amount      `json:"amount"`
	DonatedAt  time.Time         `json:"donated_at"`
	Verified   bool              `json:"verified"`
	VerifiedAt *time.Time        `json:"verified_at,omitempty"`
	VerifiedBy domain.ActorID    `json:"verified_by,omitempty"`
}

// CanVerify checks the one-way verified flag.
func (d *Donation) CanVerify() error {
	if d.Verified {
		return dErrors.New(dErrors.CodeAlreadyVerified, "donation already verified")
	}
	return nil
}

// ApplyVerification flips the flag. Call CanVerify first.
func (d *Donation) ApplyVerification(by domain.ActorID, now time.Time) {
	d.Verified = true
	d.VerifiedAt = &now
	d.VerifiedBy = by
}

// Disbursement records the external payment of an approved allocation.
type Disbursement struct {
	ID           domain.DisbursementID `json:"id"`
	AllocationID domain.AllocationID   `json:"allocation_id"`
	Amount       money.Amount          `json:"amount"`
	ExecutedBy   domain.ActorID        `json:"executed_by"`
	PaymentRef   string                `json:"payment_ref"`
	ExecutedAt   time.Time             `json:"executed_at"`
}

// Receiver is an organisation that can be allocated funds.
type Receiver struct {
	ID                 domain.ReceiverID `json:"id"`
	Name               string            `json:"name"`
	Category           string            `json:"category"`
	PaymentDestination string            `json:"payment_destination"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Document is evidence attached to a disbursement. It has no balance effect.
type Document struct {
	ID             domain.DocumentID     `json:"id"`
	DisbursementID domain.DisbursementID `json:"disbursement_id"`
	StorageLocator string                `json:"storage_locator"`
	ContentHash    string                `json:"content_hash"`
	UploadedBy     domain.ActorID        `json:"uploaded_by"`
	UploadedAt     time.Time             `json:"uploaded_at"`
}

// ActorProfile is the display-name directory row for an actor.
type ActorProfile struct {
	ID   domain.ActorID `json:"id"`
	Name string         `json:"name"`
	Role domain.Role    `json:"role"`
}
