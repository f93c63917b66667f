package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/louisbranch/followgraph/internal/platform/auth"
	apperrors "github.com/louisbranch/followgraph/internal/platform/errors"
	"github.com/louisbranch/followgraph/internal/platform/httpx"
	"github.com/louisbranch/followgraph/internal/platform/requestctx"
	"github.com/louisbranch/followgraph/internal/services/social/domain"
)

// Service is the follow graph surface served over HTTP.
type Service interface {
	ListUsers(ctx context.Context, actorID string) ([]domain.DirectoryEntry, error)
	GetUser(ctx context.Context, userID string) (domain.Profile, error)
	ListFollowRequests(ctx context.Context, actorID string) ([]domain.UserSummary, error)
	ListFollowers(ctx context.Context, userID string) ([]domain.UserSummary, error)
	ListFollowing(ctx context.Context, userID string) ([]domain.UserSummary, error)
	SendFollowRequest(ctx context.Context, actorID, targetID string) (domain.UserSummary, error)
	AcceptFollowRequest(ctx context.Context, actorID, requesterID string) (domain.UserSummary, error)
	RejectFollowRequest(ctx context.Context, actorID, requesterID string) error
	FollowDirect(ctx context.Context, actorID, targetID string) (domain.FollowResult, error)
	Unfollow(ctx context.Context, actorID, targetID string) (domain.UnfollowResult, error)
	DeleteAccount(ctx context.Context, actorID string) error
}

// Authenticator resolves a session token to a user id.
type Authenticator interface {
	Verify(token string) (string, error)
}

// NewHandler returns the /api/users routes behind session authentication.
func NewHandler(service Service, authenticator Authenticator, errs httpx.ErrorWriter) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, handlers{service: service, errs: errs})
	return requireSession(authenticator, errs, mux)
}

func requireSession(authenticator Authenticator, errs httpx.ErrorWriter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authenticator == nil {
			errs.Write(w, r, apperrors.New(apperrors.CodeInternal, "session verification is not configured"))
			return
		}
		token := auth.TokenFromRequest(r)
		if token == "" {
			errs.Write(w, r, apperrors.New(apperrors.CodeUnauthenticated, "Unauthorized - No Token Provided"))
			return
		}
		userID, err := authenticator.Verify(token)
		if err != nil {
			errs.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithUserID(r.Context(), userID)))
	})
}

type handlers struct {
	service Service
	errs    httpx.ErrorWriter
}

func (h handlers) actor(r *http.Request) (context.Context, string) {
	ctx := r.Context()
	return ctx, requestctx.UserIDFromContext(ctx)
}

func pathID(r *http.Request, name string) string {
	return strings.TrimSpace(r.PathValue(name))
}

func (h handlers) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	entries, err := h.service.ListUsers(ctx, actorID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	out := make([]directoryEntryView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, directoryEntryView{
			profileView:    newProfileView(entry.Profile),
			IsMutualFollow: entry.IsMutualFollow,
		})
	}
	_ = httpx.WriteJSON(w, http.StatusOK, out)
}

func (h handlers) handleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetUser(r.Context(), pathID(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, newProfileView(profile))
}

func (h handlers) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	summaries, err := h.service.ListFollowRequests(ctx, actorID)
	h.writeSummaries(w, r, summaries, err)
}

func (h handlers) handleListFollowers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListFollowers(r.Context(), pathID(r, "userId"))
	h.writeSummaries(w, r, summaries, err)
}

func (h handlers) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListFollowing(r.Context(), pathID(r, "userId"))
	h.writeSummaries(w, r, summaries, err)
}

func (h handlers) writeSummaries(w http.ResponseWriter, r *http.Request, summaries []domain.UserSummary, err error) {
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	out := make([]summaryView, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, newSummaryView(summary))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, out)
}

func (h handlers) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	target, err := h.service.SendFollowRequest(ctx, actorID, pathID(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, sendRequestResponse{
		Message:  "Follow request sent successfully",
		Receiver: newUserRefView(target),
	})
}

func (h handlers) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	requester, err := h.service.AcceptFollowRequest(ctx, actorID, pathID(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, acceptRequestResponse{
		Message:  "Follow request accepted",
		Follower: newSummaryView(requester),
	})
}

func (h handlers) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	if err := h.service.RejectFollowRequest(ctx, actorID, pathID(r, "id")); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteMessage(w, http.StatusOK, "Follow request rejected")
}

func (h handlers) handleFollow(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	result, err := h.service.FollowDirect(ctx, actorID, pathID(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, followResponse{
		Message:        "Followed successfully.",
		FollowersCount: result.FollowersCount,
		FollowingCount: result.FollowingCount,
	})
}

func (h handlers) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	result, err := h.service.Unfollow(ctx, actorID, pathID(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, unfollowResponse{
		Message:             "Mutual unfollow successful.",
		MyFollowersCount:    result.MyFollowersCount,
		MyFollowingCount:    result.MyFollowingCount,
		TheirFollowersCount: result.TheirFollowersCount,
		TheirFollowingCount: result.TheirFollowingCount,
		UnfollowedUser:      newUserRefView(result.UnfollowedUser),
	})
}

func (h handlers) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx, actorID := h.actor(r)
	if err := h.service.DeleteAccount(ctx, actorID); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	_ = httpx.WriteMessage(w, http.StatusOK, "Account deleted successfully")
}
