package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/followgraph/internal/platform/auth"
	"github.com/louisbranch/followgraph/internal/platform/httpx"
	"github.com/louisbranch/followgraph/internal/services/social/domain"
	"github.com/louisbranch/followgraph/internal/services/social/storage"
	"github.com/louisbranch/followgraph/internal/services/social/storage/sqlite"
)

const testSecret = "test-secret"

type apiFixture struct {
	handler  http.Handler
	verifier *auth.Verifier
}

func newAPIFixture(t *testing.T, userIDs ...string) apiFixture {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/followgraph.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	created := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range userIDs {
		if err := store.PutUser(context.Background(), storage.User{
			ID:        id,
			Username:  id,
			FullName:  strings.ToUpper(id[:1]) + id[1:],
			Email:     id + "@example.com",
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
			UpdatedAt: created.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("put user %s: %v", id, err)
		}
	}

	verifier, err := auth.NewVerifier(testSecret, nil)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	service := domain.NewService(store, nil)
	return apiFixture{
		handler:  NewHandler(service, verifier, httpx.ErrorWriter{}),
		verifier: verifier,
	}
}

func (f apiFixture) do(t *testing.T, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		token, err := f.verifier.Sign(userID, time.Hour)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func assertMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["message"] != message {
		t.Fatalf("message = %v, want %q", body["message"], message)
	}
}

func TestRequireSession(t *testing.T) {
	f := newAPIFixture(t, "alice")

	assertMessage(t, f.do(t, http.MethodGet, RouteUsers, ""), http.StatusUnauthorized, "Unauthorized - No Token Provided")

	req := httptest.NewRequest(http.MethodGet, RouteUsers, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assertMessage(t, rec, http.StatusUnauthorized, "Unauthorized - Invalid Token")

	expired, err := f.verifier.Sign("alice", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, RouteUsers, nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired status = %d, want 401", rec.Code)
	}
}

func TestRequireSessionWithoutAuthenticator(t *testing.T) {
	handler := NewHandler(stubService{}, nil, httpx.ErrorWriter{Production: true})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RouteUsers, nil))
	assertMessage(t, rec, http.StatusInternalServerError, httpx.GenericInternalMessage)
}

func TestFollowRequestLifecycle(t *testing.T) {
	f := newAPIFixture(t, "alice", "bob")

	rec := f.do(t, http.MethodPost, "/api/users/request/bob", "alice")
	assertMessage(t, rec, http.StatusOK, "Follow request sent successfully")
	sent := decodeBody[sendRequestResponse](t, rec)
	if sent.Receiver != (userRefView{ID: "bob", Username: "bob", FullName: "Bob"}) {
		t.Fatalf("receiver = %+v", sent.Receiver)
	}

	assertMessage(t, f.do(t, http.MethodPost, "/api/users/request/bob", "alice"), http.StatusBadRequest, "Follow request already sent.")

	rec = f.do(t, http.MethodGet, RouteRequests, "bob")
	if rec.Code != http.StatusOK {
		t.Fatalf("requests status = %d", rec.Code)
	}
	requests := decodeBody[[]summaryView](t, rec)
	if len(requests) != 1 || requests[0].ID != "alice" {
		t.Fatalf("requests = %+v", requests)
	}

	rec = f.do(t, http.MethodPost, "/api/users/requests/alice/accept", "bob")
	assertMessage(t, rec, http.StatusOK, "Follow request accepted")
	accepted := decodeBody[acceptRequestResponse](t, rec)
	if accepted.Follower.ID != "alice" || accepted.Follower.FullName != "Alice" {
		t.Fatalf("follower = %+v", accepted.Follower)
	}

	assertMessage(t, f.do(t, http.MethodPost, "/api/users/requests/alice/accept", "bob"), http.StatusBadRequest, "No follow request from this user")
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/request/bob", "alice"), http.StatusBadRequest, "Already following this user.")

	rec = f.do(t, http.MethodGet, "/api/users/followers/bob", "alice")
	followers := decodeBody[[]summaryView](t, rec)
	if len(followers) != 1 || followers[0].ID != "alice" {
		t.Fatalf("followers = %+v", followers)
	}
	rec = f.do(t, http.MethodGet, "/api/users/following/alice", "bob")
	following := decodeBody[[]summaryView](t, rec)
	if len(following) != 1 || following[0].ID != "bob" {
		t.Fatalf("following = %+v", following)
	}
}

func TestRejectFollowRequest(t *testing.T) {
	f := newAPIFixture(t, "alice", "bob")

	assertMessage(t, f.do(t, http.MethodPost, "/api/users/request/bob", "alice"), http.StatusOK, "Follow request sent successfully")
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/requests/alice/reject", "bob"), http.StatusOK, "Follow request rejected")
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/requests/alice/reject", "bob"), http.StatusBadRequest, "No follow request from this user")

	rec := f.do(t, http.MethodGet, RouteRequests, "bob")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("requests body = %s, want []", body)
	}
}

func TestFollowDirectoryAndMutualUnfollow(t *testing.T) {
	f := newAPIFixture(t, "alice", "bob", "carol")

	rec := f.do(t, http.MethodPost, "/api/users/follow/bob", "alice")
	assertMessage(t, rec, http.StatusOK, "Followed successfully.")
	followed := decodeBody[followResponse](t, rec)
	if followed.FollowersCount != 1 || followed.FollowingCount != 1 {
		t.Fatalf("follow counts = %+v", followed)
	}
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/follow/bob", "alice"), http.StatusBadRequest, "Already following.")
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/follow/alice", "bob"), http.StatusOK, "Followed successfully.")

	rec = f.do(t, http.MethodGet, RouteUsers, "alice")
	entries := decodeBody[[]directoryEntryView](t, rec)
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	byID := map[string]directoryEntryView{}
	for _, entry := range entries {
		byID[entry.ID] = entry
	}
	if _, ok := byID["alice"]; ok {
		t.Fatal("directory must exclude the caller")
	}
	if !byID["bob"].IsMutualFollow || byID["carol"].IsMutualFollow {
		t.Fatalf("mutual flags = bob %v carol %v", byID["bob"].IsMutualFollow, byID["carol"].IsMutualFollow)
	}
	if got := byID["carol"].Followers; got == nil || len(got) != 0 {
		t.Fatalf("carol followers = %#v, want empty list", got)
	}

	rec = f.do(t, http.MethodPost, "/api/users/unfollow/bob", "alice")
	assertMessage(t, rec, http.StatusOK, "Mutual unfollow successful.")
	unfollowed := decodeBody[unfollowResponse](t, rec)
	if unfollowed.MyFollowersCount != 0 || unfollowed.MyFollowingCount != 0 ||
		unfollowed.TheirFollowersCount != 0 || unfollowed.TheirFollowingCount != 0 {
		t.Fatalf("unfollow counts = %+v", unfollowed)
	}
	if unfollowed.UnfollowedUser.ID != "bob" {
		t.Fatalf("unfollowed user = %+v", unfollowed.UnfollowedUser)
	}
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/unfollow/bob", "alice"), http.StatusBadRequest, "Not following this user.")
}

func TestGetUserAndDeleteAccount(t *testing.T) {
	f := newAPIFixture(t, "alice", "bob")
	assertMessage(t, f.do(t, http.MethodPost, "/api/users/follow/bob", "alice"), http.StatusOK, "Followed successfully.")

	rec := f.do(t, http.MethodGet, "/api/users/bob", "alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	profile := decodeBody[profileView](t, rec)
	if profile.ID != "bob" || profile.Email != "bob@example.com" || len(profile.Followers) != 1 || profile.Followers[0] != "alice" {
		t.Fatalf("profile = %+v", profile)
	}

	assertMessage(t, f.do(t, http.MethodDelete, RouteDeleteAccount, "alice"), http.StatusOK, "Account deleted successfully")
	assertMessage(t, f.do(t, http.MethodDelete, RouteDeleteAccount, "alice"), http.StatusNotFound, "User not found")
	assertMessage(t, f.do(t, http.MethodGet, "/api/users/alice", "bob"), http.StatusNotFound, "User not found")

	rec = f.do(t, http.MethodGet, "/api/users/bob", "bob")
	profile = decodeBody[profileView](t, rec)
	if len(profile.Followers) != 0 {
		t.Fatalf("followers after delete = %v", profile.Followers)
	}
}

func TestTransitionValidationErrors(t *testing.T) {
	f := newAPIFixture(t, "alice")

	tests := []struct {
		name    string
		method  string
		path    string
		status  int
		message string
	}{
		{name: "request self", method: http.MethodPost, path: "/api/users/request/alice", status: http.StatusBadRequest, message: "You cannot request to follow yourself."},
		{name: "request missing", method: http.MethodPost, path: "/api/users/request/ghost", status: http.StatusNotFound, message: "User to follow not found."},
		{name: "follow self", method: http.MethodPost, path: "/api/users/follow/alice", status: http.StatusBadRequest, message: "You cannot follow yourself."},
		{name: "follow missing", method: http.MethodPost, path: "/api/users/follow/ghost", status: http.StatusNotFound, message: "User not found."},
		{name: "unfollow self", method: http.MethodPost, path: "/api/users/unfollow/alice", status: http.StatusBadRequest, message: "You cannot unfollow yourself."},
		{name: "accept missing", method: http.MethodPost, path: "/api/users/requests/ghost/accept", status: http.StatusNotFound, message: "User not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertMessage(t, f.do(t, tc.method, tc.path, "alice"), tc.status, tc.message)
		})
	}
}

func TestRoutesMethodContracts(t *testing.T) {
	f := newAPIFixture(t, "alice", "bob")

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "list users", method: http.MethodGet, path: RouteUsers, wantStatus: http.StatusOK},
		{name: "list users post rejected", method: http.MethodPost, path: RouteUsers, wantStatus: http.StatusMethodNotAllowed},
		{name: "follow get rejected", method: http.MethodGet, path: "/api/users/follow/bob", wantStatus: http.StatusMethodNotAllowed},
		{name: "delete post rejected", method: http.MethodPost, path: RouteDeleteAccount, wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown subpath", method: http.MethodGet, path: "/api/users/bob/other", wantStatus: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, "alice")
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

type stubService struct {
	Service
	err error
}

func (s stubService) ListUsers(context.Context, string) ([]domain.DirectoryEntry, error) {
	return nil, s.err
}

func TestInternalErrorsHiddenInProduction(t *testing.T) {
	verifier, err := auth.NewVerifier(testSecret, nil)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := verifier.Sign("alice", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	service := stubService{err: errors.New("disk I/O error")}

	for _, production := range []bool{true, false} {
		handler := NewHandler(service, verifier, httpx.ErrorWriter{Production: production})
		req := httptest.NewRequest(http.MethodGet, RouteUsers, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		want := "disk I/O error"
		if production {
			want = httpx.GenericInternalMessage
		}
		assertMessage(t, rec, http.StatusInternalServerError, want)
	}
}
