package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/attestation-registry/attestation"
	"github.com/ruteri/attestation-registry/interfaces"
)

// SignatureHeader carries "<address>:<signature>" over the request body.
// The signer address is the caller of every mutating operation.
const SignatureHeader = "X-Flashbots-Signature"

// Route paths served by the HTTP host.
const (
	PathInit               = "/api/v1/init"
	PathRegister           = "/api/v1/register"
	PathSaveAttestation    = "/api/v1/attestations/save"
	PathConfirmAttestation = "/api/v1/attestations/confirm"
	PathAddAttestator      = "/api/v1/admin/attestators/add"
	PathRemoveAttestator   = "/api/v1/admin/attestators/remove"
	PathSetRegisterCost    = "/api/v1/admin/cost"
	PathSetMaxNonceDiff    = "/api/v1/admin/max-nonce-diff"
	PathClaim              = "/api/v1/admin/claim"
	PathUsers              = "/api/v1/users"
	PathRegistrationCost   = "/api/v1/registration-cost"
	PathMaxNonceDiff       = "/api/v1/max-nonce-diff"
	PathAttestators        = "/api/v1/attestators"
	PathOwner              = "/api/v1/owner"
	PathVersion            = "/api/v1/version"
)

// InitRequest configures a fresh engine. The signer becomes the owner.
type InitRequest struct {
	RegistrationCost interfaces.Amount `json:"registration_cost"`
	MaxNonceDiff     uint64            `json:"max_nonce_diff"`
	Attestators      []common.Address  `json:"attestators"`
}

// RegisterRequest claims the slot at Key. Payment must equal the registration cost.
type RegisterRequest struct {
	Key     interfaces.ObfuscatedKey `json:"key"`
	Payment interfaces.Amount        `json:"payment"`
}

type SaveAttestationRequest struct {
	Key        interfaces.ObfuscatedKey `json:"key"`
	Commitment common.Hash              `json:"commitment"`
}

type ConfirmAttestationRequest struct {
	Key    interfaces.ObfuscatedKey `json:"key"`
	Secret hexutil.Bytes            `json:"secret"`
}

type AttestatorRequest struct {
	Address common.Address `json:"address"`
}

type SetRegisterCostRequest struct {
	Cost interfaces.Amount `json:"cost"`
}

type SetMaxNonceDiffRequest struct {
	MaxNonceDiff uint64 `json:"max_nonce_diff"`
}

// UserRecordResponse is the full record stored under a key.
type UserRecordResponse struct {
	Key              interfaces.ObfuscatedKey `json:"key"`
	State            attestation.ValueState   `json:"state"`
	Commitment       common.Hash              `json:"commitment"`
	Secret           hexutil.Bytes            `json:"secret,omitempty"`
	Owner            common.Address           `json:"owner"`
	Verifier         common.Address           `json:"verifier"`
	LastUpdateHeight uint64                   `json:"last_update_height"`
}

// NewUserRecordResponse converts an engine record.
func NewUserRecordResponse(key interfaces.ObfuscatedKey, record *attestation.AttestationRecord) *UserRecordResponse {
	return &UserRecordResponse{
		Key:              key,
		State:            record.State,
		Commitment:       record.Commitment,
		Secret:           record.Secret,
		Owner:            record.Owner,
		Verifier:         record.Verifier,
		LastUpdateHeight: record.LastUpdateHeight,
	}
}

type StateResponse struct {
	State attestation.ValueState `json:"state"`
}

type PublicKeyResponse struct {
	PublicKey common.Address `json:"public_key"`
}

type RegistrationCostResponse struct {
	Cost interfaces.Amount `json:"cost"`
}

type MaxNonceDiffResponse struct {
	MaxNonceDiff uint64 `json:"max_nonce_diff"`
}

type AttestatorsResponse struct {
	Attestators []common.Address `json:"attestators"`
}

type OwnerResponse struct {
	Owner common.Address `json:"owner"`
}

type ClaimResponse struct {
	Amount interfaces.Amount `json:"amount"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

// StatusResponse acknowledges a mutating operation.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned with every non-2xx status. Code is the engine
// error code when the failure came from the state machine.
type ErrorResponse struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}
