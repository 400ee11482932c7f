// Package store declares the persistence contract the lifecycle engine runs
// against. Backends live in the memory and postgres subpackages.
//
// Reads outside a transaction see committed state only. Every mutation goes
// through RunInTx; the function's Tx observes its own writes, and nothing it
// wrote is visible to anyone else until it returns nil.
//
// Errors are sentinel facts from pkg/platform/sentinel:
//   - ErrNotFound for a missing row
//   - ErrBrokenReference when a create names a row that does not exist
//   - ErrUnavailable for timeouts, lost connections and serialization failures
package store

import (
	"context"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/money"
)

// Reader is the read side shared by the store and its transactions.
type Reader interface {
	GetCampaign(ctx context.Context, id domain.CampaignID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	GetReceiver(ctx context.Context, id domain.ReceiverID) (*models.Receiver, error)
	// ListReceivers returns receivers ordered by id.
	ListReceivers(ctx context.Context) ([]*models.Receiver, error)
	GetDonation(ctx context.Context, id domain.DonationID) (*models.Donation, error)
	ListDonations(ctx context.Context, filter models.DonationFilter) ([]*models.Donation, error)
	GetAllocation(ctx context.Context, id domain.AllocationID) (*models.Allocation, error)
	GetAllocationByDonation(ctx context.Context, id domain.DonationID) (*models.Allocation, error)
	ListAllocations(ctx context.Context, filter models.AllocationFilter) ([]*models.Allocation, error)
	GetDisbursement(ctx context.Context, id domain.DisbursementID) (*models.Disbursement, error)
	ListDisbursements(ctx context.Context, filter models.DisbursementFilter) ([]*models.Disbursement, error)
	ListDocuments(ctx context.Context, id domain.DisbursementID) ([]*models.Document, error)
	GetActor(ctx context.Context, id domain.ActorID) (*models.ActorProfile, error)
	ListAudit(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)

	// SumVerifiedDonations totals verified donation amounts for a campaign.
	SumVerifiedDonations(ctx context.Context, id domain.CampaignID) (money.Amount, error)
	// SumDisbursements totals disbursements whose allocation belongs to the campaign.
	SumDisbursements(ctx context.Context, id domain.CampaignID) (money.Amount, error)
}

// Tx is one unit of work. Create methods assign the entity ID in place.
type Tx interface {
	Reader
	audit.Appender

	// CampaignForUpdate reads a campaign and holds it against concurrent
	// balance writers until the transaction ends.
	CampaignForUpdate(ctx context.Context, id domain.CampaignID) (*models.Campaign, error)
	SetCampaignBalance(ctx context.Context, id domain.CampaignID, balance money.Amount) error

	CreateCampaign(ctx context.Context, c *models.Campaign) error
	CreateReceiver(ctx context.Context, r *models.Receiver) error
	CreateDonation(ctx context.Context, d *models.Donation) error
	CreateAllocation(ctx context.Context, a *models.Allocation) error
	CreateDisbursement(ctx context.Context, d *models.Disbursement) error
	CreateDocument(ctx context.Context, d *models.Document) error

	// UpdateDonation stores a verification. It fails with
	// sentinel.ErrConflict when the donation is already verified.
	UpdateDonation(ctx context.Context, d *models.Donation) error
	// UpdateAllocation stores a as long as the allocation is still in status
	// from; otherwise it fails with sentinel.ErrConflict.
	UpdateAllocation(ctx context.Context, a *models.Allocation, from models.AllocationStatus) error

	UpsertActor(ctx context.Context, a *models.ActorProfile) error
}

// Outbox is the relay's view of audit entries not yet published downstream.
type Outbox interface {
	ListUnpublished(ctx context.Context, limit int) ([]audit.Entry, error)
	MarkPublished(ctx context.Context, seqs []int64) error
}

// Store is a ledger backend with an explicit lifecycle.
type Store interface {
	Reader
	Outbox
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
