// Package access holds the static role × operation permission table consulted
// before every lifecycle operation.
package access

import (
	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
)

// Operation names a lifecycle-engine entry point.
type Operation string

const (
	OpRecordDonation      Operation = "record_donation"
	OpVerifyDonation      Operation = "verify_donation"
	OpSetAllocationStatus Operation = "set_allocation_status"
	OpRecordDisbursement  Operation = "record_disbursement"
	OpAttachDocument      Operation = "attach_document"
	OpReadAudit           Operation = "read_audit"
	OpCreateCampaign      Operation = "create_campaign"
	OpCreateReceiver      Operation = "create_receiver"
	OpListDisbursements   Operation = "list_disbursements"
	OpReconcile           Operation = "reconcile"
	OpReadLedger          Operation = "read_ledger"
)

// table is the authoritative permission matrix. Anything absent is denied.
var table = map[domain.Role]map[Operation]bool{
	domain.RoleDonor: {
		OpRecordDonation: true,
		OpReadLedger:     true,
	},
	domain.RoleOperator: {
		OpVerifyDonation:      true,
		OpSetAllocationStatus: true,
		OpCreateCampaign:      true,
		OpListDisbursements:   true,
		OpReadLedger:          true,
	},
	domain.RoleAccountant: {
		OpSetAllocationStatus: true,
		OpRecordDisbursement:  true,
		OpAttachDocument:      true,
		OpCreateReceiver:      true,
		OpListDisbursements:   true,
		OpReadLedger:          true,
	},
	domain.RoleAuditor: {
		OpReadAudit:         true,
		OpListDisbursements: true,
		OpReconcile:         true,
		OpReadLedger:        true,
	},
	domain.RoleAdmin: {
		OpRecordDonation:      true,
		OpVerifyDonation:      true,
		OpSetAllocationStatus: true,
		OpRecordDisbursement:  true,
		OpAttachDocument:      true,
		OpReadAudit:           true,
		OpCreateCampaign:      true,
		OpCreateReceiver:      true,
		OpListDisbursements:   true,
		OpReconcile:           true,
		OpReadLedger:          true,
	},
}

// Allowed reports whether role may invoke op. Pure; unknown roles get nothing.
func Allowed(role domain.Role, op Operation) bool {
	return table[role][op]
}

// Operations lists every operation the table knows about, for tests and docs.
func Operations() []Operation {
	return []Operation{
		OpRecordDonation, OpVerifyDonation, OpSetAllocationStatus, OpRecordDisbursement,
		OpAttachDocument, OpReadAudit, OpCreateCampaign, OpCreateReceiver,
		OpListDisbursements, OpReconcile, OpReadLedger,
	}
}

// Policy is the engine-facing wrapper that turns a denial into an error.
type Policy struct{}

// Check returns a forbidden error when actor may not invoke op. The message
// never names the actor's role or the target entity.
func (Policy) Check(actor domain.Actor, op Operation) error {
	if actor.IsZero() || !Allowed(actor.Role, op) {
		return dErrors.New(dErrors.CodeForbidden, "operation not permitted")
	}
	return nil
}
