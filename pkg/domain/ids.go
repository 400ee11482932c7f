package domain

import (
	"strconv"
	"strings"

	dErrors "donation-ledger/pkg/domain-errors"
)

// Ledger identifiers are store-assigned, strictly increasing per entity type
// and never reused. Distinct types keep a DonationID from being passed where
// an AllocationID is expected.
type (
	CampaignID     int64
	DonationID     int64
	AllocationID   int64
	DisbursementID int64
	ReceiverID     int64
	DocumentID     int64
)

func (id CampaignID) String() string     { return strconv.FormatInt(int64(id), 10) }
func (id DonationID) String() string     { return strconv.FormatInt(int64(id), 10) }
func (id AllocationID) String() string   { return strconv.FormatInt(int64(id), 10) }
func (id DisbursementID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id ReceiverID) String() string     { return strconv.FormatInt(int64(id), 10) }
func (id DocumentID) String() string     { return strconv.FormatInt(int64(id), 10) }

func ParseCampaignID(s string) (CampaignID, error) {
	v, err := parseID(s, "campaign id")
	return CampaignID(v), err
}

func ParseDonationID(s string) (DonationID, error) {
	v, err := parseID(s, "donation id")
	return DonationID(v), err
}

func ParseAllocationID(s string) (AllocationID, error) {
	v, err := parseID(s, "allocation id")
	return AllocationID(v), err
}

func ParseDisbursementID(s string) (DisbursementID, error) {
	v, err := parseID(s, "disbursement id")
	return DisbursementID(v), err
}

func ParseReceiverID(s string) (ReceiverID, error) {
	v, err := parseID(s, "receiver id")
	return ReceiverID(v), err
}

// parseID enforces the boundary invariant: ids are positive base-10 integers.
func parseID(s, what string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, what+" is required")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+what)
	}
	return v, nil
}
