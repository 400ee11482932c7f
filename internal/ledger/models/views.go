package models

import "donation-ledger/pkg/money"

// Views carry display fields joined at read time. None of these fields are
// persisted alongside the entity.

type DonationView struct {
	Donation
	CampaignTitle string `json:"campaign_title"`
	DonorName     string `json:"donor_name"`
}

type AllocationView struct {
	Allocation
	CampaignTitle    string `json:"campaign_title"`
	ReceiverName     string `json:"receiver_name"`
	DonorName        string `json:"donor_name"`
	DonationVerified bool   `json:"donation_verified"`
}

type DisbursementView struct {
	Disbursement
	CampaignTitle string `json:"campaign_title"`
	ReceiverName  string `json:"receiver_name"`
	RecordedBy    string `json:"recorded_by"`
}

// Placeholders used when a display join finds nothing.
const (
	UnknownCampaign = "Unknown Campaign"
	UnknownReceiver = "Unknown Receiver"
	UnknownActor    = "Unknown"
)

// Reconciliation compares the stored campaign balance with one recomputed
// from donation and disbursement history.
type Reconciliation struct {
	Campaign        *Campaign    `json:"campaign"`
	StoredBalance   money.Amount `json:"stored_balance"`
	Verified        money.Amount `json:"verified_total"`
	Disbursed       money.Amount `json:"disbursed_total"`
	ComputedBalance money.Amount `json:"computed_balance"`
	Consistent      bool         `json:"consistent"`
}
