// Package database defines the records stored in the ledger log and the
// deterministic encoding used for them.
package database

// Labels under which records are appended to the log.
const (
	LabelTokenTransfer     = "DCTokenTransfer"
	LabelTokenApproval     = "DCTokenApproval"
	LabelReputationChange  = "RepChange"
	LabelReputationAge     = "RepAge"
	LabelProviderRegister  = "NPRegister"
	LabelUserRegister      = "UserRegister"
	LabelProviderProfile   = "NPProfile"
	LabelProviderOffering  = "NPOffering"
	LabelContractSignReq   = "ContractSignReq"
	LabelContractSignReply = "ContractSignReply"
)

// Kind is the closed set of entry kinds the ledger understands.
type Kind int

// Set of entry kinds. KindUnrecognized covers labels written by other
// systems sharing the log.
const (
	KindUnrecognized Kind = iota
	KindTokenTransfer
	KindTokenApproval
	KindReputationChange
	KindReputationAge
	KindProviderRegister
	KindUserRegister
	KindProviderProfile
	KindProviderOffering
	KindContractSignRequest
	KindContractSignReply
)

var labels = map[Kind]string{
	KindTokenTransfer:       LabelTokenTransfer,
	KindTokenApproval:       LabelTokenApproval,
	KindReputationChange:    LabelReputationChange,
	KindReputationAge:       LabelReputationAge,
	KindProviderRegister:    LabelProviderRegister,
	KindUserRegister:        LabelUserRegister,
	KindProviderProfile:     LabelProviderProfile,
	KindProviderOffering:    LabelProviderOffering,
	KindContractSignRequest: LabelContractSignReq,
	KindContractSignReply:   LabelContractSignReply,
}

var kinds = func() map[string]Kind {
	m := make(map[string]Kind, len(labels))
	for k, l := range labels {
		m[l] = k
	}
	return m
}()

// KindOf maps a log label to its kind.
func KindOf(label string) Kind {
	return kinds[label]
}

// Label returns the log label of the kind. Unrecognized has no label.
func (k Kind) Label() string {
	return labels[k]
}

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	if k == KindUnrecognized {
		return "Unrecognized"
	}
	return labels[k]
}
