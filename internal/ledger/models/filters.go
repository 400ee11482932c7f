package models

import "donation-ledger/pkg/domain"

// DonationFilter narrows ListDonations. Zero fields match everything.
type DonationFilter struct {
	CampaignID domain.CampaignID
	DonorID    domain.ActorID
	Verified   *bool
}

func (f DonationFilter) Matches(d *Donation) bool {
	if f.CampaignID != 0 && d.CampaignID != f.CampaignID {
		return false
	}
	if f.DonorID != "" && d.DonorID != f.DonorID {
		return false
	}
	if f.Verified != nil && d.Verified != *f.Verified {
		return false
	}
	return true
}

// AllocationFilter narrows ListAllocations. Zero fields match everything.
type AllocationFilter struct {
	CampaignID domain.CampaignID
	Status     AllocationStatus
	// DonorID restricts to allocations whose donation belongs to the donor.
	DonorID domain.ActorID
}

// DisbursementFilter narrows ListDisbursements.
type DisbursementFilter struct {
	CampaignID domain.CampaignID
}
