package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/go-utils/signature"
	"github.com/google/uuid"
	"github.com/ruteri/attestation-registry/api"
	"github.com/ruteri/attestation-registry/attestation"
	"github.com/ruteri/attestation-registry/interfaces"
)

// RequestIDHeader correlates client requests with server logs.
const RequestIDHeader = "X-Request-ID"

// APIError is a non-2xx response from the registry.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
}

// Is matches engine sentinels by code, so callers can write
// errors.Is(err, attestation.ErrRecordBusy) against remote failures.
func (e *APIError) Is(target error) bool {
	var engineErr *attestation.Error
	if errors.As(target, &engineErr) {
		return e.Code != "" && e.Code == engineErr.Code
	}
	return false
}

// AttestationClient calls the registry HTTP API. Mutating calls are signed
// with the client key, whose address is the caller seen by the registry.
type AttestationClient struct {
	baseURL    string
	signer     *signature.Signer
	httpClient *http.Client
}

// NewAttestationClient creates a client for baseURL (e.g. "http://localhost:8080").
// key may be nil for a read-only client.
func NewAttestationClient(baseURL string, key *ecdsa.PrivateKey, timeout ...time.Duration) *AttestationClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	c := &AttestationClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: clientTimeout},
	}
	if key != nil {
		signer := signature.NewSigner(key)
		c.signer = &signer
	}
	return c
}

// Address returns the caller address of the client key.
func (c *AttestationClient) Address() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

func (c *AttestationClient) Init(ctx context.Context, cost interfaces.Amount, maxNonceDiff uint64, attestators ...common.Address) error {
	return c.post(ctx, api.PathInit, api.InitRequest{
		RegistrationCost: cost,
		MaxNonceDiff:     maxNonceDiff,
		Attestators:      attestators,
	}, nil)
}

func (c *AttestationClient) Register(ctx context.Context, key interfaces.ObfuscatedKey, payment interfaces.Amount) error {
	return c.post(ctx, api.PathRegister, api.RegisterRequest{Key: key, Payment: payment}, nil)
}

func (c *AttestationClient) SaveAttestation(ctx context.Context, key interfaces.ObfuscatedKey, commitment common.Hash) error {
	return c.post(ctx, api.PathSaveAttestation, api.SaveAttestationRequest{Key: key, Commitment: commitment}, nil)
}

func (c *AttestationClient) ConfirmAttestation(ctx context.Context, key interfaces.ObfuscatedKey, secret []byte) error {
	return c.post(ctx, api.PathConfirmAttestation, api.ConfirmAttestationRequest{Key: key, Secret: secret}, nil)
}

func (c *AttestationClient) AddAttestator(ctx context.Context, address common.Address) error {
	return c.post(ctx, api.PathAddAttestator, api.AttestatorRequest{Address: address}, nil)
}

func (c *AttestationClient) RemoveAttestator(ctx context.Context, address common.Address) error {
	return c.post(ctx, api.PathRemoveAttestator, api.AttestatorRequest{Address: address}, nil)
}

func (c *AttestationClient) SetRegisterCost(ctx context.Context, cost interfaces.Amount) error {
	return c.post(ctx, api.PathSetRegisterCost, api.SetRegisterCostRequest{Cost: cost}, nil)
}

func (c *AttestationClient) SetMaxNonceDiff(ctx context.Context, maxNonceDiff uint64) error {
	return c.post(ctx, api.PathSetMaxNonceDiff, api.SetMaxNonceDiffRequest{MaxNonceDiff: maxNonceDiff}, nil)
}

// Claim transfers the treasury balance to the owner and returns the amount sent.
func (c *AttestationClient) Claim(ctx context.Context) (interfaces.Amount, error) {
	var resp api.ClaimResponse
	if err := c.post(ctx, api.PathClaim, struct{}{}, &resp); err != nil {
		return interfaces.Amount{}, err
	}
	return resp.Amount, nil
}

func (c *AttestationClient) UserState(ctx context.Context, key interfaces.ObfuscatedKey) (*api.UserRecordResponse, error) {
	var resp api.UserRecordResponse
	if err := c.get(ctx, api.PathUsers+"/"+key.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *AttestationClient) State(ctx context.Context, key interfaces.ObfuscatedKey) (attestation.ValueState, error) {
	var resp api.StateResponse
	if err := c.get(ctx, api.PathUsers+"/"+key.String()+"/state", &resp); err != nil {
		return attestation.None, err
	}
	return resp.State, nil
}

func (c *AttestationClient) PublicKey(ctx context.Context, key interfaces.ObfuscatedKey) (common.Address, error) {
	var resp api.PublicKeyResponse
	if err := c.get(ctx, api.PathUsers+"/"+key.String()+"/public-key", &resp); err != nil {
		return common.Address{}, err
	}
	return resp.PublicKey, nil
}

func (c *AttestationClient) RegistrationCost(ctx context.Context) (interfaces.Amount, error) {
	var resp api.RegistrationCostResponse
	if err := c.get(ctx, api.PathRegistrationCost, &resp); err != nil {
		return interfaces.Amount{}, err
	}
	return resp.Cost, nil
}

func (c *AttestationClient) MaxNonceDiff(ctx context.Context) (uint64, error) {
	var resp api.MaxNonceDiffResponse
	if err := c.get(ctx, api.PathMaxNonceDiff, &resp); err != nil {
		return 0, err
	}
	return resp.MaxNonceDiff, nil
}

func (c *AttestationClient) Attestators(ctx context.Context) ([]common.Address, error) {
	var resp api.AttestatorsResponse
	if err := c.get(ctx, api.PathAttestators, &resp); err != nil {
		return nil, err
	}
	return resp.Attestators, nil
}

func (c *AttestationClient) Owner(ctx context.Context) (common.Address, error) {
	var resp api.OwnerResponse
	if err := c.get(ctx, api.PathOwner, &resp); err != nil {
		return common.Address{}, err
	}
	return resp.Owner, nil
}

func (c *AttestationClient) Version(ctx context.Context) (string, error) {
	var resp api.VersionResponse
	if err := c.get(ctx, api.PathVersion, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (c *AttestationClient) post(ctx context.Context, path string, body, out any) error {
	if c.signer == nil {
		return errors.New("client has no signing key")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	sig, err := c.signer.Create(payload)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, sig)
	return c.do(req, out)
}

func (c *AttestationClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *AttestationClient) do(req *http.Request, out any) error {
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var errResp api.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			apiErr.Code = errResp.Code
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
