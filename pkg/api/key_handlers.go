package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/guard"
	"github.com/inkwell-cms/inkwell/pkg/httputil"
	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// createKeyResponse carries the one-time plaintext secret alongside the key
// record. The secret is never retrievable again.
type createKeyResponse struct {
	Key    *apikeys.Key `json:"key"`
	Secret string       `json:"secret"`
}

// createKey handles POST /api/v1/sites/{siteID}/keys
func (s *Server) createKey(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}

	var req apikeys.CreateKeyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if !req.Permission.Valid() {
		httputil.WriteBadRequest(w, "unknown permission")
		return
	}

	if err := principal.ValidateKeyCreation(r.Context(), s.memberships, siteID, req.Permission); err != nil {
		s.writeGuardError(w, err)
		return
	}

	secret, hash, prefix, err := s.generator.Generate()
	if err != nil {
		s.logger.WithError(err).Error("failed to generate api key")
		httputil.WriteInternalError(w, err)
		return
	}

	key := &apikeys.Key{
		SiteID:     &siteID,
		Name:       req.Name,
		KeyHash:    hash,
		KeyPrefix:  prefix,
		Permission: req.Permission,
		Status:     apikeys.StatusActive,
		Limits:     req.Limits.WithDefaults(),
		ExpiresAt:  req.ExpiresAt,
		CreatedBy:  creatorLabel(principal),
	}
	if err := s.keys.Create(r.Context(), key); err != nil {
		s.logger.WithError(err).Error("failed to store api key")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, createKeyResponse{Key: key, Secret: secret})
}

// listKeys handles GET /api/v1/sites/{siteID}/keys
func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin); err != nil {
		s.writeGuardError(w, err)
		return
	}

	keys, err := s.keys.ListBySite(r.Context(), siteID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list api keys")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

// getKey handles GET /api/v1/sites/{siteID}/keys/{keyID}
func (s *Server) getKey(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin); err != nil {
		s.writeGuardError(w, err)
		return
	}

	key, ok := s.siteKey(w, r, siteID)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, key)
}

type updateKeyStatusRequest struct {
	Status apikeys.Status `json:"status"`
}

// updateKeyStatus handles PUT /api/v1/sites/{siteID}/keys/{keyID}/status.
// Transitions follow the key lifecycle: a revoked key cannot come back.
func (s *Server) updateKeyStatus(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin); err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req updateKeyStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	key, ok := s.siteKey(w, r, siteID)
	if !ok {
		return
	}
	if !key.Status.CanTransitionTo(req.Status) {
		httputil.WriteConflict(w, "invalid status transition")
		return
	}

	if err := s.keys.UpdateStatus(r.Context(), key.ID, req.Status); err != nil {
		s.logger.WithError(err).Error("failed to update api key status")
		httputil.WriteInternalError(w, err)
		return
	}
	key.Status = req.Status
	httputil.WriteSuccess(w, key)
}

// deleteKey handles DELETE /api/v1/sites/{siteID}/keys/{keyID}
func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin); err != nil {
		s.writeGuardError(w, err)
		return
	}

	key, ok := s.siteKey(w, r, siteID)
	if !ok {
		return
	}
	if err := s.keys.Delete(r.Context(), key.ID); err != nil {
		s.logger.WithError(err).Error("failed to delete api key")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// siteKey loads a key and verifies it belongs to the site in the path
func (s *Server) siteKey(w http.ResponseWriter, r *http.Request, siteID uuid.UUID) (*apikeys.Key, bool) {
	keyID, err := uuid.Parse(mux.Vars(r)["keyID"])
	if err != nil {
		httputil.WriteBadRequest(w, "invalid key ID")
		return nil, false
	}

	key, err := s.keys.GetByID(r.Context(), keyID)
	if errors.Is(err, apikeys.ErrKeyNotFound) {
		httputil.WriteNotFoundError(w, "key not found")
		return nil, false
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load api key")
		httputil.WriteInternalError(w, err)
		return nil, false
	}
	if key.SiteID == nil || *key.SiteID != siteID {
		httputil.WriteNotFoundError(w, "key not found")
		return nil, false
	}
	return key, true
}

// sitePrincipal pulls the principal and the siteID path variable
func (s *Server) sitePrincipal(w http.ResponseWriter, r *http.Request) (*guard.Principal, uuid.UUID, bool) {
	principal, ok := guard.GetPrincipal(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, uuid.Nil, false
	}
	siteID, err := uuid.Parse(mux.Vars(r)["siteID"])
	if err != nil {
		httputil.WriteBadRequest(w, "invalid site ID")
		return nil, uuid.Nil, false
	}
	return principal, siteID, true
}

func creatorLabel(principal *guard.Principal) string {
	if principal.Kind == guard.KindUser {
		return principal.SubjectID.String()
	}
	return "key:" + principal.KeyID.String()
}
