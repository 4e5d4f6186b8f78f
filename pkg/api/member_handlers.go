package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inkwell-cms/inkwell/pkg/guard"
	"github.com/inkwell-cms/inkwell/pkg/httputil"
	"github.com/inkwell-cms/inkwell/pkg/sites"
)

// getSite handles GET /api/v1/sites/{siteID}
func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleViewer); err != nil {
		s.writeGuardError(w, err)
		return
	}

	site, err := s.siteStore.GetSite(r.Context(), siteID)
	if errors.Is(err, sites.ErrSiteNotFound) {
		httputil.WriteNotFoundError(w, "site not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to load site")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, site)
}

// listMembers handles GET /api/v1/sites/{siteID}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleViewer); err != nil {
		s.writeGuardError(w, err)
		return
	}

	members, err := s.siteStore.ListMembers(r.Context(), siteID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list members")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"members": members,
		"count":   len(members),
	})
}

// addMember handles POST /api/v1/sites/{siteID}/members. Granting the
// Owner role goes through the ownership-transfer endpoint instead.
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	callerRole, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req sites.AddMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.SubjectID == "" {
		httputil.WriteBadRequest(w, "subject_id is required")
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if req.Role == sites.RoleOwner {
		httputil.WriteForbidden(w, "ownership is granted via transfer")
		return
	}
	// A caller cannot grant a role above their own.
	if !principal.SystemAdmin && req.Role.Rank() > callerRole.Rank() {
		httputil.WriteForbidden(w, "cannot grant a role above your own")
		return
	}

	invitedBy := creatorLabel(principal)
	member, err := s.siteStore.AddMember(r.Context(), siteID, req.SubjectID, req.Role, &invitedBy)
	if errors.Is(err, sites.ErrMemberExists) {
		httputil.WriteConflict(w, "member already exists")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to add member")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateMembership(req.SubjectID, siteID)
	httputil.WriteCreated(w, member)
}

// updateMember handles PUT /api/v1/sites/{siteID}/members/{subjectID}
func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	callerRole, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req sites.UpdateMemberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "unknown role")
		return
	}
	if req.Role == sites.RoleOwner {
		httputil.WriteForbidden(w, "ownership is granted via transfer")
		return
	}
	if !principal.SystemAdmin && req.Role.Rank() > callerRole.Rank() {
		httputil.WriteForbidden(w, "cannot grant a role above your own")
		return
	}

	subjectID := mux.Vars(r)["subjectID"]
	err = s.siteStore.UpdateMemberRole(r.Context(), siteID, subjectID, req.Role)
	switch {
	case errors.Is(err, sites.ErrMemberNotFound):
		httputil.WriteNotFoundError(w, "member not found")
		return
	case errors.Is(err, sites.ErrSoleOwner):
		httputil.WriteConflict(w, "cannot demote the sole owner")
		return
	case err != nil:
		s.logger.WithError(err).Error("failed to update member role")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateMembership(subjectID, siteID)
	httputil.WriteNoContent(w)
}

// removeMember handles DELETE /api/v1/sites/{siteID}/members/{subjectID}
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	subjectID := mux.Vars(r)["subjectID"]

	// Members may always remove themselves; removing anyone else takes Admin.
	self := principal.Kind == guard.KindUser && principal.SubjectID.String() == subjectID
	if !self {
		if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleAdmin); err != nil {
			s.writeGuardError(w, err)
			return
		}
	}

	err := s.siteStore.RemoveMember(r.Context(), siteID, subjectID)
	switch {
	case errors.Is(err, sites.ErrMemberNotFound):
		httputil.WriteNotFoundError(w, "member not found")
		return
	case errors.Is(err, sites.ErrSoleOwner):
		httputil.WriteConflict(w, "cannot remove the sole owner")
		return
	case err != nil:
		s.logger.WithError(err).Error("failed to remove member")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateMembership(subjectID, siteID)
	httputil.WriteNoContent(w)
}

// transferOwnership handles POST /api/v1/sites/{siteID}/ownership. Only
// the current owner (or a system admin) may transfer; the old owner is
// demoted to Admin in the same transaction.
func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	principal, siteID, ok := s.sitePrincipal(w, r)
	if !ok {
		return
	}
	if _, err := principal.RequireSiteRole(r.Context(), s.memberships, siteID, sites.RoleOwner); err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req sites.TransferOwnershipRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.NewOwnerSubjectID == "" {
		httputil.WriteBadRequest(w, "new_owner_subject_id is required")
		return
	}

	currentOwner := principal.SubjectID.String()
	err := s.siteStore.TransferOwnership(r.Context(), siteID, currentOwner, req.NewOwnerSubjectID)
	switch {
	case errors.Is(err, sites.ErrMemberNotFound):
		httputil.WriteConflict(w, "caller is not the current owner")
		return
	case err != nil:
		s.logger.WithError(err).Error("failed to transfer ownership")
		httputil.WriteInternalError(w, err)
		return
	}
	s.invalidateMembership(currentOwner, siteID)
	s.invalidateMembership(req.NewOwnerSubjectID, siteID)
	httputil.WriteNoContent(w)
}

// invalidateMembership drops cached membership entries after a mutation
func (s *Server) invalidateMembership(subjectID string, siteID uuid.UUID) {
	if cache, ok := s.memberships.(*sites.CachedMembershipStore); ok {
		cache.Invalidate(subjectID, siteID)
	}
}
