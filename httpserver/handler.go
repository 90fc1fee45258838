package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/go-utils/signature"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/attestation-registry/api"
	"github.com/ruteri/attestation-registry/attestation"
	appcommon "github.com/ruteri/attestation-registry/common"
	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/ruteri/attestation-registry/metrics"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) *RequestError {
	return &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf(format, args...)}
}

// Handler exposes the attestation engine over HTTP.
//
// The engine performs no locking of its own, so every call, views included,
// runs under a single mutex. Callers of mutating operations are identified
// by the signature header; views are public.
type Handler struct {
	mu      sync.Mutex
	engine  *attestation.Engine
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHandler creates a handler for engine. Metrics are attached by the server.
func NewHandler(engine *attestation.Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, log: log}
}

// HandleInit configures the engine. The signer becomes the owner.
//
// URL format: POST /api/v1/init
func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	var req api.InitRequest
	h.mutate(w, r, "init", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.Init(ctx, caller, req.RegistrationCost, req.MaxNonceDiff, req.Attestators...); err != nil {
			return nil, err
		}
		h.refreshAttestators(ctx)
		return api.StatusResponse{Status: "initialized"}, nil
	})
}

// HandleRegister claims a slot for the signer.
//
// URL format: POST /api/v1/register
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	h.mutate(w, r, "register", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.Register(ctx, caller, req.Key, req.Payment); err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "registered"}, nil
	})
}

// HandleSaveAttestation stores the commitment of the signing attestator.
//
// URL format: POST /api/v1/attestations/save
func (h *Handler) HandleSaveAttestation(w http.ResponseWriter, r *http.Request) {
	var req api.SaveAttestationRequest
	h.mutate(w, r, "save_attestation", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.SaveAttestation(ctx, caller, req.Key, req.Commitment); err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "pending"}, nil
	})
}

// HandleConfirmAttestation reveals the secret of the signer's registration.
//
// URL format: POST /api/v1/attestations/confirm
func (h *Handler) HandleConfirmAttestation(w http.ResponseWriter, r *http.Request) {
	var req api.ConfirmAttestationRequest
	h.mutate(w, r, "confirm_attestation", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.ConfirmAttestation(ctx, caller, req.Key, req.Secret); err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "approved"}, nil
	})
}

func (h *Handler) HandleAddAttestator(w http.ResponseWriter, r *http.Request) {
	var req api.AttestatorRequest
	h.mutate(w, r, "add_attestator", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.AddAttestator(ctx, caller, req.Address); err != nil {
			return nil, err
		}
		h.refreshAttestators(ctx)
		return api.StatusResponse{Status: "added"}, nil
	})
}

func (h *Handler) HandleRemoveAttestator(w http.ResponseWriter, r *http.Request) {
	var req api.AttestatorRequest
	h.mutate(w, r, "remove_attestator", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.RemoveAttestator(ctx, caller, req.Address); err != nil {
			return nil, err
		}
		h.refreshAttestators(ctx)
		return api.StatusResponse{Status: "removed"}, nil
	})
}

func (h *Handler) HandleSetRegisterCost(w http.ResponseWriter, r *http.Request) {
	var req api.SetRegisterCostRequest
	h.mutate(w, r, "set_register_cost", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.SetRegisterCost(ctx, caller, req.Cost); err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "updated"}, nil
	})
}

func (h *Handler) HandleSetMaxNonceDiff(w http.ResponseWriter, r *http.Request) {
	var req api.SetMaxNonceDiffRequest
	h.mutate(w, r, "set_max_nonce_diff", &req, func(ctx context.Context, caller common.Address) (any, error) {
		if err := h.engine.SetMaxNonceDiff(ctx, caller, req.MaxNonceDiff); err != nil {
			return nil, err
		}
		return api.StatusResponse{Status: "updated"}, nil
	})
}

// HandleClaim transfers the treasury balance to the owner.
//
// URL format: POST /api/v1/admin/claim
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	h.mutate(w, r, "claim", &req, func(ctx context.Context, caller common.Address) (any, error) {
		amount, err := h.engine.Claim(ctx, caller)
		if err != nil {
			return nil, err
		}
		return api.ClaimResponse{Amount: amount}, nil
	})
}

// HandleUser returns the full record under {key}.
//
// URL format: GET /api/v1/users/{key}
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "user_state", func(ctx context.Context) (any, error) {
		key, err := keyParam(r)
		if err != nil {
			return nil, err
		}
		record, err := h.engine.UserState(ctx, key)
		if err != nil {
			return nil, err
		}
		return api.NewUserRecordResponse(key, record), nil
	})
}

// HandleUserState returns the phase of {key}, "none" when nothing is stored.
func (h *Handler) HandleUserState(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "state", func(ctx context.Context) (any, error) {
		key, err := keyParam(r)
		if err != nil {
			return nil, err
		}
		state, err := h.engine.State(ctx, key)
		if err != nil {
			return nil, err
		}
		return api.StateResponse{State: state}, nil
	})
}

// HandlePublicKey returns the owner of an approved registration.
func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "public_key", func(ctx context.Context) (any, error) {
		key, err := keyParam(r)
		if err != nil {
			return nil, err
		}
		owner, err := h.engine.PublicKey(ctx, key)
		if err != nil {
			return nil, err
		}
		return api.PublicKeyResponse{PublicKey: owner}, nil
	})
}

func (h *Handler) HandleRegistrationCost(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "registration_cost", func(ctx context.Context) (any, error) {
		cost, err := h.engine.RegistrationCost(ctx)
		if err != nil {
			return nil, err
		}
		return api.RegistrationCostResponse{Cost: cost}, nil
	})
}

func (h *Handler) HandleMaxNonceDiff(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "max_nonce_diff", func(ctx context.Context) (any, error) {
		diff, err := h.engine.MaxNonceDiff(ctx)
		if err != nil {
			return nil, err
		}
		return api.MaxNonceDiffResponse{MaxNonceDiff: diff}, nil
	})
}

func (h *Handler) HandleAttestators(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "attestators", func(ctx context.Context) (any, error) {
		attestators, err := h.engine.Attestators(ctx)
		if err != nil {
			return nil, err
		}
		return api.AttestatorsResponse{Attestators: attestators}, nil
	})
}

func (h *Handler) HandleOwner(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "owner", func(ctx context.Context) (any, error) {
		owner, err := h.engine.Owner(ctx)
		if err != nil {
			return nil, err
		}
		return api.OwnerResponse{Owner: owner}, nil
	})
}

func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.VersionResponse{Version: appcommon.Version})
}

// mutate authenticates the caller, decodes the body into req and runs op
// under the handler lock.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, operation string, req any, op func(context.Context, common.Address) (any, error)) {
	started := time.Now()

	caller, reqErr := readSigned(r, req)
	if reqErr != nil {
		h.log.Debug("Rejected request", "operation", operation, "err", reqErr)
		h.metrics.Observe(operation, "rejected", started)
		h.writeError(w, reqErr.StatusCode, "", reqErr.Error())
		return
	}

	h.mu.Lock()
	resp, err := op(r.Context(), caller)
	h.mu.Unlock()

	if err != nil {
		h.log.Info("Operation failed", "operation", operation, "caller", caller.Hex(), "err", err)
		h.metrics.Observe(operation, outcome(err), started)
		h.writeEngineError(w, err)
		return
	}

	h.log.Debug("Operation succeeded", "operation", operation, "caller", caller.Hex())
	h.metrics.Observe(operation, metrics.OutcomeOK, started)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request, operation string, op func(context.Context) (any, error)) {
	started := time.Now()

	h.mu.Lock()
	resp, err := op(r.Context())
	h.mu.Unlock()

	if err != nil {
		h.metrics.Observe(operation, outcome(err), started)
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			h.writeError(w, reqErr.StatusCode, "", reqErr.Error())
			return
		}
		h.writeEngineError(w, err)
		return
	}

	h.metrics.Observe(operation, metrics.OutcomeOK, started)
	h.writeJSON(w, http.StatusOK, resp)
}

// refreshAttestators updates the attestator gauge. Called with the lock held.
func (h *Handler) refreshAttestators(ctx context.Context) {
	if h.metrics == nil {
		return
	}
	attestators, err := h.engine.Attestators(ctx)
	if err != nil {
		h.log.Warn("Failed to read attestators for metrics", "err", err)
		return
	}
	h.metrics.SetAttestators(len(attestators))
}

// readSigned reads the body, recovers the signer from the signature header
// and decodes the JSON body into v.
func readSigned(r *http.Request, v any) (common.Address, *RequestError) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return common.Address{}, badRequest("failed to read request body: %v", err)
	}
	if len(body) > maxBodySize {
		return common.Address{}, &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: errors.New("request body too large")}
	}

	header := r.Header.Get(api.SignatureHeader)
	if header == "" {
		return common.Address{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: errors.New("missing signature header")}
	}
	caller, err := signature.Verify(header, body)
	if err != nil {
		return common.Address{}, &RequestError{StatusCode: http.StatusUnauthorized, Err: fmt.Errorf("invalid signature: %w", err)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return common.Address{}, badRequest("invalid request body: %v", err)
	}
	return caller, nil
}

func keyParam(r *http.Request) (interfaces.ObfuscatedKey, error) {
	key, err := interfaces.NewObfuscatedKeyFromHex(chi.URLParam(r, "key"))
	if err != nil {
		return interfaces.ObfuscatedKey{}, badRequest("invalid key: %v", err)
	}
	return key, nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch attestation.KindOf(err) {
	case attestation.KindValidation:
		switch {
		case errors.Is(err, attestation.ErrNotOwner),
			errors.Is(err, attestation.ErrNotAttestator),
			errors.Is(err, attestation.ErrWrongVerifier),
			errors.Is(err, attestation.ErrUnauthorized):
			return http.StatusForbidden
		case errors.Is(err, attestation.ErrAlreadyInitialized):
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case attestation.KindNotFound:
		return http.StatusNotFound
	case attestation.KindInvariant:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func outcome(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return "rejected"
	}
	if code := attestation.CodeOf(err); code != "" {
		return code
	}
	return metrics.OutcomeError
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := attestation.CodeOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("Internal error", "err", err)
		if attestation.KindOf(err) != attestation.KindDecode {
			msg = "internal error"
		}
	}
	h.writeError(w, status, code, msg)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, api.ErrorResponse{Code: code, Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
