package api

import (
	"errors"
	"net/http"

	"github.com/inkwell-cms/inkwell/pkg/httputil"
	"github.com/inkwell-cms/inkwell/pkg/observability"
	"github.com/inkwell-cms/inkwell/pkg/workflow"
)

type transitionRequest struct {
	CurrentStatus   workflow.Status `json:"current_status"`
	RequestedStatus workflow.Status `json:"requested_status"`
}

type transitionResponse struct {
	Allowed bool            `json:"allowed"`
	Status  workflow.Status `json:"status"`
}

// validateTransition handles POST /api/v1/sites/{siteID}/workflow/transitions.
// It checks a proposed content-status change against the caller's role and
// the site's review policy.
func (s *Server) validateTransition(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	role, err := principal.EffectiveSiteRole(r.Context(), s.memberships, siteID)
	if err != nil {
		observability.GetLogger(r.Context()).WithError(err).Error("failed to resolve site role")
		httputil.WriteInternalError(w, err)
		return
	}
	if role == "" {
		httputil.WriteForbidden(w, "no access to this site")
		return
	}

	err = s.engine.ValidateTransition(r.Context(), siteID, role, req.CurrentStatus, req.RequestedStatus)
	var forbidden *workflow.ForbiddenError
	switch {
	case errors.As(err, &forbidden):
		if s.metrics != nil {
			s.metrics.WorkflowRejectionsTotal.WithLabelValues(string(req.RequestedStatus)).Inc()
		}
		httputil.WriteForbidden(w, forbidden.Error())
		return
	case err != nil:
		observability.GetLogger(r.Context()).WithError(err).Error("failed to validate workflow transition")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, transitionResponse{Allowed: true, Status: req.RequestedStatus})
}
