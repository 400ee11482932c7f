package models

import "donation-ledger/pkg/money"

// DonationResult is returned by RecordDonation.
type DonationResult struct {
	Donation   *Donation   `json:"donation"`
	Allocation *Allocation `json:"allocation"`
}

// VerifyResult is returned by VerifyDonation.
type VerifyResult struct {
	Donation   *Donation    `json:"donation"`
	NewBalance money.Amount `json:"new_balance"`
}

// AllocationResult is returned by SetAllocationStatus.
type AllocationResult struct {
	Allocation     *Allocation      `json:"allocation"`
	PreviousStatus AllocationStatus `json:"previous_status"`
}

// DisbursementResult is returned by RecordDisbursement.
type DisbursementResult struct {
	Disbursement *Disbursement `json:"disbursement"`
	Allocation   *Allocation   `json:"allocation"`
	NewBalance   money.Amount  `json:"new_balance"`
}
