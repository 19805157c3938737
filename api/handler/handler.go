package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/secureteam/access-gate/api/service"
	"github.com/secureteam/access-gate/autherrors"
)

type Handlers struct {
	service *service.Service
	logger  *zap.Logger
}

func NewHandlers(service *service.Service, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

type MfaSetupRequest struct {
	Account string `json:"account"`
}

type MfaSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

type MfaVerifyRequest struct {
	Account string `json:"account"`
	Code    string `json:"code"`
}

type MfaVerifyResponse struct {
	Token string `json:"token"`
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

func (h *Handlers) MfaSetupHandler(w http.ResponseWriter, r *http.Request) {
	var setupRequest MfaSetupRequest

	if !h.decode(w, r, &setupRequest) {
		return
	}

	if setupRequest.Account == "" {
		http.Error(w, "Missing account", http.StatusBadRequest)

		return
	}

	secret, uri, err := h.service.MfaSetup(r.Context(), setupRequest.Account)
	if err != nil {
		h.logger.Error("Failed to start MFA setup.", zap.Error(err))
		http.Error(w, "Failed to start MFA setup", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, MfaSetupResponse{Secret: secret, ProvisioningURI: uri})
}

func (h *Handlers) MfaVerifyHandler(w http.ResponseWriter, r *http.Request) {
	var verifyRequest MfaVerifyRequest

	if !h.decode(w, r, &verifyRequest) {
		return
	}

	if verifyRequest.Account == "" || verifyRequest.Code == "" {
		http.Error(w, "Missing account or code", http.StatusBadRequest)

		return
	}

	deviceID := r.Header.Get("X-Device-ID")

	signed, err := h.service.MfaVerify(r.Context(), verifyRequest.Account, verifyRequest.Code, deviceID)
	if err != nil {
		switch {
		case errors.Is(err, autherrors.ErrSessionExpired), errors.Is(err, autherrors.ErrInvalidCode):
			h.logger.Info("MFA verification rejected.",
				zap.String("account", verifyRequest.Account), zap.Error(err))
			http.Error(w, "MFA verification failed", http.StatusUnauthorized)
		default:
			h.logger.Error("MFA verification error.",
				zap.String("account", verifyRequest.Account), zap.Error(err))
			http.Error(w, "MFA verification failed", http.StatusInternalServerError)
		}

		return
	}

	writeJSON(w, http.StatusOK, MfaVerifyResponse{Token: signed})
}

func (h *Handlers) PublicKeysHandler(w http.ResponseWriter, r *http.Request) {
	jwks, err := h.service.PublicJWKS()
	if err != nil {
		h.logger.Error("Failed to render public JWKS.", zap.Error(err))
		http.Error(w, "Failed to retrieve public keys", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jwks)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read request body.", zap.Error(err))
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)

		return false
	}

	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)

		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
