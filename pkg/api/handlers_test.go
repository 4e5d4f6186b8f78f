package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/apikeys"
	"github.com/inkwell-cms/inkwell/pkg/contextkeys"
	"github.com/inkwell-cms/inkwell/pkg/guard"
	"github.com/inkwell-cms/inkwell/pkg/observability"
	"github.com/inkwell-cms/inkwell/pkg/sites"
	"github.com/inkwell-cms/inkwell/pkg/workflow"
)

type fakeMemberships struct {
	roles  map[string]sites.Role
	admins map[string]bool
}

func (f *fakeMemberships) GetMembership(_ context.Context, subjectID string, siteID uuid.UUID) (*sites.Membership, error) {
	role, ok := f.roles[subjectID]
	if !ok {
		return nil, nil
	}
	return &sites.Membership{SiteID: siteID, SubjectID: subjectID, Role: role}, nil
}

func (f *fakeMemberships) IsSystemAdmin(_ context.Context, subjectID string) (bool, error) {
	return f.admins[subjectID], nil
}

type fakeKeyStore struct {
	created []*apikeys.Key
	byID    map[uuid.UUID]*apikeys.Key
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{byID: map[uuid.UUID]*apikeys.Key{}}
}

func (f *fakeKeyStore) Create(_ context.Context, key *apikeys.Key) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	f.created = append(f.created, key)
	f.byID[key.ID] = key
	return nil
}

func (f *fakeKeyStore) GetByHash(_ context.Context, _ string) (*apikeys.Key, error) {
	return nil, apikeys.ErrKeyNotFound
}

func (f *fakeKeyStore) GetByID(_ context.Context, id uuid.UUID) (*apikeys.Key, error) {
	key, ok := f.byID[id]
	if !ok {
		return nil, apikeys.ErrKeyNotFound
	}
	return key, nil
}

func (f *fakeKeyStore) ListBySite(_ context.Context, siteID uuid.UUID) ([]*apikeys.Key, error) {
	var out []*apikeys.Key
	for _, key := range f.byID {
		if key.SiteID != nil && *key.SiteID == siteID {
			out = append(out, key)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) UpdateStatus(_ context.Context, id uuid.UUID, status apikeys.Status) error {
	key, ok := f.byID[id]
	if !ok {
		return apikeys.ErrKeyNotFound
	}
	key.Status = status
	return nil
}

func (f *fakeKeyStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeKeyStore) RecordUsage(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (f *fakeKeyStore) ExpireOverdue(_ context.Context) (int64, error)             { return 0, nil }

type staticPolicy struct {
	policy workflow.Policy
}

func (s staticPolicy) SitePolicy(_ context.Context, _ uuid.UUID) (workflow.Policy, error) {
	return s.policy, nil
}

type apiFixture struct {
	server      *Server
	keys        *fakeKeyStore
	memberships *fakeMemberships
	siteID      uuid.UUID
}

func newAPIFixture(t *testing.T, requireReview bool) *apiFixture {
	t.Helper()
	keys := newFakeKeyStore()
	memberships := &fakeMemberships{roles: map[string]sites.Role{}, admins: map[string]bool{}}
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	engine := workflow.NewEngine(staticPolicy{workflow.Policy{RequireReview: requireReview}})

	server := &Server{
		router:      mux.NewRouter(),
		keys:        keys,
		generator:   apikeys.NewGenerator("test-pepper"),
		memberships: memberships,
		engine:      engine,
		logger:      logger,
	}

	return &apiFixture{
		server:      server,
		keys:        keys,
		memberships: memberships,
		siteID:      uuid.New(),
	}
}

// do invokes a handler directly with the principal in context and path vars
// set, bypassing the authentication middleware.
func (f *apiFixture) do(handler http.HandlerFunc, principal *guard.Principal, body interface{}, vars map[string]string) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		json.NewEncoder(&reader).Encode(body)
	}

	r := httptest.NewRequest(http.MethodPost, "/", &reader)
	r = r.WithContext(contextkeys.WithPrincipal(r.Context(), principal))
	if vars == nil {
		vars = map[string]string{}
	}
	if _, ok := vars["siteID"]; !ok {
		vars["siteID"] = f.siteID.String()
	}
	r = mux.SetURLVars(r, vars)

	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func (f *apiFixture) userPrincipal(role sites.Role) *guard.Principal {
	subjectID := uuid.New()
	if role != "" {
		f.memberships.roles[subjectID.String()] = role
	}
	return &guard.Principal{Kind: guard.KindUser, SubjectID: subjectID}
}

func TestCreateKey(t *testing.T) {
	f := newAPIFixture(t, true)
	principal := f.userPrincipal(sites.RoleAdmin)

	w := f.do(f.server.createKey, principal, apikeys.CreateKeyRequest{
		Name:       "ci key",
		Permission: apikeys.PermissionWrite,
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp createKeyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Secret)
	assert.Equal(t, apikeys.StatusActive, resp.Key.Status)
	assert.Equal(t, apikeys.PermissionWrite, resp.Key.Permission)

	// Limits default when the request leaves them empty
	assert.Equal(t, apikeys.DefaultPerMinute, resp.Key.Limits.PerMinute)

	require.Len(t, f.keys.created, 1)
	require.NotNil(t, f.keys.created[0].SiteID)
	assert.Equal(t, f.siteID, *f.keys.created[0].SiteID)
}

func TestCreateKeyCapEnforced(t *testing.T) {
	f := newAPIFixture(t, true)

	// An Admin may not mint an Admin-level key
	w := f.do(f.server.createKey, f.userPrincipal(sites.RoleAdmin), apikeys.CreateKeyRequest{
		Name:       "too strong",
		Permission: apikeys.PermissionAdmin,
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// An Editor may not mint a write key
	w = f.do(f.server.createKey, f.userPrincipal(sites.RoleEditor), apikeys.CreateKeyRequest{
		Name:       "write key",
		Permission: apikeys.PermissionWrite,
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Empty(t, f.keys.created)
}

func TestCreateKeySystemAdminExemptFromCap(t *testing.T) {
	f := newAPIFixture(t, true)
	principal := &guard.Principal{Kind: guard.KindUser, SubjectID: uuid.New(), SystemAdmin: true}

	w := f.do(f.server.createKey, principal, apikeys.CreateKeyRequest{
		Name:       "root key",
		Permission: apikeys.PermissionMaster,
	}, nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateKeyValidation(t *testing.T) {
	f := newAPIFixture(t, true)
	principal := f.userPrincipal(sites.RoleOwner)

	w := f.do(f.server.createKey, principal, apikeys.CreateKeyRequest{
		Permission: apikeys.PermissionRead,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(f.server.createKey, principal, apikeys.CreateKeyRequest{
		Name:       "bad permission",
		Permission: apikeys.Permission("root"),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateKeyStatus(t *testing.T) {
	f := newAPIFixture(t, true)
	principal := f.userPrincipal(sites.RoleAdmin)

	key := &apikeys.Key{SiteID: &f.siteID, Name: "k", Status: apikeys.StatusActive}
	require.NoError(t, f.keys.Create(context.Background(), key))
	vars := map[string]string{"keyID": key.ID.String()}

	w := f.do(f.server.updateKeyStatus, principal, updateKeyStatusRequest{Status: apikeys.StatusBlocked}, vars)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, apikeys.StatusBlocked, key.Status)

	// Blocked -> Revoked is allowed, Revoked -> Active is not
	w = f.do(f.server.updateKeyStatus, principal, updateKeyStatusRequest{Status: apikeys.StatusRevoked}, vars)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(f.server.updateKeyStatus, principal, updateKeyStatusRequest{Status: apikeys.StatusActive}, vars)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apikeys.StatusRevoked, key.Status)
}

func TestKeyFromAnotherSiteIsHidden(t *testing.T) {
	f := newAPIFixture(t, true)
	principal := f.userPrincipal(sites.RoleAdmin)

	otherSite := uuid.New()
	key := &apikeys.Key{SiteID: &otherSite, Name: "other", Status: apikeys.StatusActive}
	require.NoError(t, f.keys.Create(context.Background(), key))

	w := f.do(f.server.getKey, principal, nil, map[string]string{"keyID": key.ID.String()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateTransitionEndpoint(t *testing.T) {
	f := newAPIFixture(t, true)

	// Editor publishes reviewed content
	w := f.do(f.server.validateTransition, f.userPrincipal(sites.RoleEditor), transitionRequest{
		CurrentStatus:   workflow.StatusInReview,
		RequestedStatus: workflow.StatusPublished,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp transitionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)
	assert.Equal(t, workflow.StatusPublished, resp.Status)

	// Author cannot publish
	w = f.do(f.server.validateTransition, f.userPrincipal(sites.RoleAuthor), transitionRequest{
		CurrentStatus:   workflow.StatusInReview,
		RequestedStatus: workflow.StatusPublished,
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A stranger has no access at all
	w = f.do(f.server.validateTransition, f.userPrincipal(""), transitionRequest{
		CurrentStatus:   workflow.StatusDraft,
		RequestedStatus: workflow.StatusInReview,
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidateTransitionReviewPolicy(t *testing.T) {
	// Review required: an Editor may still publish a draft directly
	f := newAPIFixture(t, true)
	w := f.do(f.server.validateTransition, f.userPrincipal(sites.RoleEditor), transitionRequest{
		CurrentStatus:   workflow.StatusDraft,
		RequestedStatus: workflow.StatusPublished,
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Review required: an Author may not skip the review step
	w = f.do(f.server.validateTransition, f.userPrincipal(sites.RoleAuthor), transitionRequest{
		CurrentStatus:   workflow.StatusDraft,
		RequestedStatus: workflow.StatusPublished,
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Review optional: the Author shortcut works
	f = newAPIFixture(t, false)
	w = f.do(f.server.validateTransition, f.userPrincipal(sites.RoleAuthor), transitionRequest{
		CurrentStatus:   workflow.StatusDraft,
		RequestedStatus: workflow.StatusPublished,
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
