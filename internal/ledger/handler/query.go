package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"donation-ledger/internal/audit"
	"donation-ledger/internal/ledger/models"
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
)

func optionalCampaign(q url.Values) (domain.CampaignID, error) {
	raw := q.Get("campaign_id")
	if raw == "" {
		return 0, nil
	}
	return domain.ParseCampaignID(raw)
}

func parseDonationFilter(q url.Values) (models.DonationFilter, error) {
	var f models.DonationFilter
	var err error
	if f.CampaignID, err = optionalCampaign(q); err != nil {
		return f, err
	}
	f.DonorID = domain.ActorID(strings.TrimSpace(q.Get("donor_id")))
	if raw := q.Get("verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "verified must be true or false")
		}
		f.Verified = &v
	}
	return f, nil
}

func parseAllocationFilter(q url.Values) (models.AllocationFilter, error) {
	var f models.AllocationFilter
	var err error
	if f.CampaignID, err = optionalCampaign(q); err != nil {
		return f, err
	}
	f.DonorID = domain.ActorID(strings.TrimSpace(q.Get("donor_id")))
	if raw := q.Get("status"); raw != "" {
		if f.Status, err = models.ParseAllocationStatus(raw); err != nil {
			return f, err
		}
	}
	return f, nil
}

func parseDisbursementFilter(q url.Values) (models.DisbursementFilter, error) {
	id, err := optionalCampaign(q)
	return models.DisbursementFilter{CampaignID: id}, err
}

func parseAuditFilter(q url.Values) (audit.Filter, error) {
	var f audit.Filter
	if raw := q.Get("entity_type"); raw != "" {
		f.EntityType = audit.EntityType(raw)
		if !f.EntityType.IsValid() {
			return f, dErrors.New(dErrors.CodeBadRequest, "unknown entity_type: "+raw)
		}
	}
	f.EntityID = strings.TrimSpace(q.Get("entity_id"))
	if f.EntityID != "" && f.EntityType == "" {
		return f, dErrors.New(dErrors.CodeBadRequest, "entity_id requires entity_type")
	}

	var err error
	if f.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, dErrors.New(dErrors.CodeBadRequest, "from must be before to")
	}
	if f.AfterSeq, err = parseNonNegative(q.Get("after_seq"), "after_seq"); err != nil {
		return f, err
	}
	limit, err := parseNonNegative(q.Get("limit"), "limit")
	if err != nil {
		return f, err
	}
	f.Limit = int(limit)
	return f, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates (UTC midnight).
func parseTime(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.New(dErrors.CodeBadRequest, field+" must be an RFC 3339 timestamp or a date")
}

func parseNonNegative(raw, field string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, field+" must be a non-negative integer")
	}
	return v, nil
}
