package memory

import (
	"cmp"
	"slices"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
)

// state is one layer of rows. The store holds the committed layer; each
// transaction holds a staged layer read on top of it.
type state struct {
	campaigns     map[domain.CampaignID]*models.Campaign
	receivers     map[domain.ReceiverID]*models.Receiver
	donations     map[domain.DonationID]*models.Donation
	allocations   map[domain.AllocationID]*models.Allocation
	disbursements map[domain.DisbursementID]*models.Disbursement
	documents     map[domain.DocumentID]*models.Document
	actors        map[domain.ActorID]*models.ActorProfile
	audit         []*audit.Entry
}

func newState() *state {
	return &state{
		campaigns:     make(map[domain.CampaignID]*models.Campaign),
		receivers:     make(map[domain.ReceiverID]*models.Receiver),
		donations:     make(map[domain.DonationID]*models.Donation),
		allocations:   make(map[domain.AllocationID]*models.Allocation),
		disbursements: make(map[domain.DisbursementID]*models.Disbursement),
		documents:     make(map[domain.DocumentID]*models.Document),
		actors:        make(map[domain.ActorID]*models.ActorProfile),
	}
}

// apply copies every staged row into s.
func (s *state) apply(staged *state) {
	merge(s.campaigns, staged.campaigns)
	merge(s.receivers, staged.receivers)
	merge(s.donations, staged.donations)
	merge(s.allocations, staged.allocations)
	merge(s.disbursements, staged.disbursements)
	merge(s.documents, staged.documents)
	merge(s.actors, staged.actors)
}

func merge[K comparable, V any](dst, src map[K]*V) {
	for k, v := range src {
		dst[k] = v
	}
}

// lookup prefers the staged row over the committed one and returns a copy.
func lookup[K comparable, V any](base, over map[K]*V, id K) (*V, bool) {
	if v, ok := over[id]; ok {
		cp := *v
		return &cp, true
	}
	if v, ok := base[id]; ok {
		cp := *v
		return &cp, true
	}
	return nil, false
}

// collect returns copies of every row passing keep, staged rows shadowing
// committed ones, ordered by id.
func collect[K cmp.Ordered, V any](base, over map[K]*V, keep func(*V) bool) []*V {
	keys := make([]K, 0, len(base)+len(over))
	for k := range base {
		if _, shadowed := over[k]; !shadowed {
			keys = append(keys, k)
		}
	}
	for k := range over {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]*V, 0, len(keys))
	for _, k := range keys {
		v, _ := lookup(base, over, k)
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}
