package service

import (
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
)

// ReceiverAssigner picks the receiver for a donation that did not name one.
// receivers is ordered by id and never empty.
type ReceiverAssigner interface {
	Assign(donation *models.Donation, receivers []*models.Receiver) domain.ReceiverID
}

// RoundRobinAssigner cycles through receivers by donation id, so the choice
// is reproducible from the store contents alone.
type RoundRobinAssigner struct{}

func (RoundRobinAssigner) Assign(d *models.Donation, receivers []*models.Receiver) domain.ReceiverID {
	idx := (int64(d.ID) - 1) % int64(len(receivers))
	if idx < 0 {
		idx += int64(len(receivers))
	}
	return receivers[idx].ID
}

var errNoReceivers = dErrors.New(dErrors.CodeValidation, "no receivers available for allocation")
