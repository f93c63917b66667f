// Package domain implements follow graph transitions and directory queries.
package domain

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/followgraph/internal/platform/errors"
	"github.com/louisbranch/followgraph/internal/services/social/storage"
)

// Operation names reported to the TransitionObserver.
const (
	OpSendFollowRequest = "send_follow_request"
	OpAccept            = "accept_follow_request"
	OpReject            = "reject_follow_request"
	OpFollow            = "follow"
	OpUnfollow          = "unfollow"
	OpDeleteAccount     = "delete_account"
)

// UserSummary is the public card of a user.
type UserSummary struct {
	ID         string
	Username   string
	FullName   string
	ProfilePic string
}

// Profile is a user with its follow sets.
type Profile struct {
	ID         string
	Username   string
	FullName   string
	Email      string
	ProfilePic string
	Followers  []string
	Following  []string
	CreatedAt  time.Time
}

// DirectoryEntry is one ListUsers row.
type DirectoryEntry struct {
	Profile
	IsMutualFollow bool
}

// FollowResult reports counts after a direct follow.
type FollowResult struct {
	FollowersCount int
	FollowingCount int
}

// UnfollowResult reports counts for both parties after a mutual unfollow.
type UnfollowResult struct {
	MyFollowersCount    int
	MyFollowingCount    int
	TheirFollowersCount int
	TheirFollowingCount int
	UnfollowedUser      UserSummary
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEventPublisher attaches a relationship event log.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.events = publisher
	}
}

// WithTransitionObserver attaches an outcome observer such as metrics.
func WithTransitionObserver(observer TransitionObserver) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithLegacyBroadcast broadcasts follow and follow_request to every client.
func WithLegacyBroadcast(enabled bool) Option {
	return func(s *Service) {
		s.legacyBroadcast = enabled
	}
}

// Service applies relationship transitions and emits their live events.
type Service struct {
	store           storage.Store
	dispatcher      Dispatcher
	events          EventPublisher
	observer        TransitionObserver
	clock           func() time.Time
	legacyBroadcast bool
}

// NewService constructs the relationship service. A nil dispatcher drops events.
func NewService(store storage.Store, dispatcher Dispatcher, opts ...Option) *Service {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	s := &Service{
		store:      store,
		dispatcher: dispatcher,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var errStoreNotConfigured = errors.New("relationship store is not configured")

func invalidParams() error {
	return apperrors.New(apperrors.CodeInvalidArgument, "Invalid request parameters")
}

// SendFollowRequest records a pending request from actor to target.
func (s *Service) SendFollowRequest(ctx context.Context, actorID, targetID string) (summary UserSummary, err error) {
	defer s.observe(OpSendFollowRequest, &err)
	if err := s.ready(); err != nil {
		return UserSummary{}, err
	}
	actorID, targetID = strings.TrimSpace(actorID), strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return UserSummary{}, invalidParams()
	}
	if actorID == targetID {
		return UserSummary{}, apperrors.New(apperrors.CodeInvalidArgument, "You cannot request to follow yourself.")
	}

	target, err := s.lookup(ctx, targetID, "User to follow not found.")
	if err != nil {
		return UserSummary{}, err
	}
	sender, err := s.lookup(ctx, actorID, "Sender not found.")
	if err != nil {
		return UserSummary{}, err
	}

	err = s.store.PutFollowRequest(ctx, storage.FollowRequest{
		RequesterID: actorID,
		TargetID:    targetID,
		CreatedAt:   s.nowUTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadyFollowing):
		return UserSummary{}, apperrors.New(apperrors.CodeConflict, "Already following this user.")
	case errors.Is(err, storage.ErrRequestPending):
		return UserSummary{}, apperrors.New(apperrors.CodeConflict, "Follow request already sent.")
	case errors.Is(err, storage.ErrNotFound):
		return UserSummary{}, apperrors.New(apperrors.CodeNotFound, "User to follow not found.")
	default:
		return UserSummary{}, internal(err)
	}

	s.dispatcher.NotifyUser(ctx, targetID, Event{Name: EventNewFollowRequest, Payload: userRef(sender)})
	if s.legacyBroadcast {
		s.dispatcher.Broadcast(ctx, Event{Name: EventFollowRequest, Payload: FollowRequestPayload{From: actorID, To: targetID}})
	}
	s.publish(ctx, RelationshipFollowRequested, actorID, targetID)
	return summaryOf(target), nil
}

// AcceptFollowRequest turns requester's pending request into requester->actor.
func (s *Service) AcceptFollowRequest(ctx context.Context, actorID, requesterID string) (summary UserSummary, err error) {
	defer s.observe(OpAccept, &err)
	if err := s.ready(); err != nil {
		return UserSummary{}, err
	}
	actorID, requesterID = strings.TrimSpace(actorID), strings.TrimSpace(requesterID)
	if actorID == "" || requesterID == "" {
		return UserSummary{}, invalidParams()
	}

	actor, err := s.lookup(ctx, actorID, "User not found")
	if err != nil {
		return UserSummary{}, err
	}
	requester, err := s.lookup(ctx, requesterID, "User not found")
	if err != nil {
		return UserSummary{}, err
	}

	err = s.store.AcceptFollowRequest(ctx, requesterID, actorID, s.nowUTC())
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNoFollowRequest):
		return UserSummary{}, apperrors.New(apperrors.CodeInvalidState, "No follow request from this user")
	case errors.Is(err, storage.ErrNotFound):
		return UserSummary{}, apperrors.New(apperrors.CodeNotFound, "User not found")
	default:
		return UserSummary{}, internal(err)
	}

	s.dispatcher.NotifyUser(ctx, requesterID, Event{Name: EventRequestAccepted, Payload: userRef(actor)})
	s.publish(ctx, RelationshipRequestAccepted, actorID, requesterID)
	return summaryOf(requester), nil
}

// RejectFollowRequest discards requester's pending request to actor.
func (s *Service) RejectFollowRequest(ctx context.Context, actorID, requesterID string) (err error) {
	defer s.observe(OpReject, &err)
	if err := s.ready(); err != nil {
		return err
	}
	actorID, requesterID = strings.TrimSpace(actorID), strings.TrimSpace(requesterID)
	if actorID == "" || requesterID == "" {
		return invalidParams()
	}

	if _, err := s.lookup(ctx, actorID, "User not found"); err != nil {
		return err
	}

	err = s.store.RejectFollowRequest(ctx, requesterID, actorID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNoFollowRequest):
		return apperrors.New(apperrors.CodeInvalidState, "No follow request from this user")
	default:
		return internal(err)
	}

	s.dispatcher.NotifyUser(ctx, requesterID, Event{Name: EventRequestRejected, Payload: RequestRejectedPayload{UserID: actorID}})
	s.publish(ctx, RelationshipRequestRejected, actorID, requesterID)
	return nil
}

// FollowDirect adds actor->target without a request.
func (s *Service) FollowDirect(ctx context.Context, actorID, targetID string) (result FollowResult, err error) {
	defer s.observe(OpFollow, &err)
	if err := s.ready(); err != nil {
		return FollowResult{}, err
	}
	actorID, targetID = strings.TrimSpace(actorID), strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return FollowResult{}, invalidParams()
	}
	if actorID == targetID {
		return FollowResult{}, apperrors.New(apperrors.CodeInvalidArgument, "You cannot follow yourself.")
	}

	if _, err := s.lookup(ctx, actorID, "User not found."); err != nil {
		return FollowResult{}, err
	}
	if _, err := s.lookup(ctx, targetID, "User not found."); err != nil {
		return FollowResult{}, err
	}

	err = s.store.PutFollow(ctx, storage.Follow{
		FollowerID: actorID,
		FollowedID: targetID,
		CreatedAt:  s.nowUTC(),
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadyFollowing):
		return FollowResult{}, apperrors.New(apperrors.CodeConflict, "Already following.")
	case errors.Is(err, storage.ErrNotFound):
		return FollowResult{}, apperrors.New(apperrors.CodeNotFound, "User not found.")
	default:
		return FollowResult{}, internal(err)
	}

	targetCounts, err := s.store.CountFollows(ctx, targetID)
	if err != nil {
		return FollowResult{}, internal(err)
	}
	actorCounts, err := s.store.CountFollows(ctx, actorID)
	if err != nil {
		return FollowResult{}, internal(err)
	}

	event := Event{Name: EventFollow, Payload: FollowPayload{FollowerID: actorID, FollowedID: targetID}}
	if s.legacyBroadcast {
		s.dispatcher.Broadcast(ctx, event)
	} else {
		s.dispatcher.NotifyUsers(ctx, []string{actorID, targetID}, event)
	}
	s.publish(ctx, RelationshipFollowed, actorID, targetID)
	return FollowResult{
		FollowersCount: targetCounts.Followers,
		FollowingCount: actorCounts.Following,
	}, nil
}

// Unfollow severs the relationship in both directions. actor must follow target.
func (s *Service) Unfollow(ctx context.Context, actorID, targetID string) (result UnfollowResult, err error) {
	defer s.observe(OpUnfollow, &err)
	if err := s.ready(); err != nil {
		return UnfollowResult{}, err
	}
	actorID, targetID = strings.TrimSpace(actorID), strings.TrimSpace(targetID)
	if actorID == "" || targetID == "" {
		return UnfollowResult{}, invalidParams()
	}
	if actorID == targetID {
		return UnfollowResult{}, apperrors.New(apperrors.CodeInvalidArgument, "You cannot unfollow yourself.")
	}

	actor, err := s.lookup(ctx, actorID, "User not found.")
	if err != nil {
		return UnfollowResult{}, err
	}
	target, err := s.lookup(ctx, targetID, "User not found.")
	if err != nil {
		return UnfollowResult{}, err
	}

	err = s.store.MutualUnfollow(ctx, actorID, targetID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFollowing):
		return UnfollowResult{}, apperrors.New(apperrors.CodeInvalidState, "Not following this user.")
	default:
		return UnfollowResult{}, internal(err)
	}

	actorCounts, err := s.store.CountFollows(ctx, actorID)
	if err != nil {
		return UnfollowResult{}, internal(err)
	}
	targetCounts, err := s.store.CountFollows(ctx, targetID)
	if err != nil {
		return UnfollowResult{}, internal(err)
	}

	s.dispatcher.NotifyUsers(ctx, []string{actorID, targetID}, Event{
		Name: EventMutualUnfollow,
		Payload: MutualUnfollowPayload{
			InitiatorID:   actorID,
			OtherUserID:   targetID,
			InitiatorName: actor.FullName,
			OtherUserName: target.FullName,
		},
	})
	s.publish(ctx, RelationshipMutualUnfollow, actorID, targetID)
	return UnfollowResult{
		MyFollowersCount:    actorCounts.Followers,
		MyFollowingCount:    actorCounts.Following,
		TheirFollowersCount: targetCounts.Followers,
		TheirFollowingCount: targetCounts.Following,
		UnfollowedUser:      summaryOf(target),
	}, nil
}

// DeleteAccount removes actor and every relationship that references it.
func (s *Service) DeleteAccount(ctx context.Context, actorID string) (err error) {
	defer s.observe(OpDeleteAccount, &err)
	if err := s.ready(); err != nil {
		return err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return invalidParams()
	}

	if err := s.store.DeleteUser(ctx, actorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "User not found")
		}
		return internal(err)
	}
	s.publish(ctx, RelationshipAccountDeleted, actorID, "")
	return nil
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return internal(errStoreNotConfigured)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, userID string, notFound string) (storage.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.User{}, apperrors.WithMetadata(apperrors.CodeNotFound, notFound, map[string]string{"UserID": userID})
		}
		return storage.User{}, internal(err)
	}
	return user, nil
}

func (s *Service) publish(ctx context.Context, eventType, actorID, targetID string) {
	if s.events == nil {
		return
	}
	event := RelationshipEvent{
		Type:       eventType,
		ActorID:    actorID,
		TargetID:   targetID,
		OccurredAt: s.nowUTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("followgraph: publish %s actor=%s target=%s: %v", eventType, actorID, targetID, err)
	}
}

func (s *Service) observe(op string, errp *error) {
	if s == nil || s.observer == nil {
		return
	}
	s.observer.ObserveTransition(op, *errp)
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

func internal(err error) error {
	return apperrors.Wrap(apperrors.CodeInternal, "", err)
}

func userRef(user storage.User) UserRefPayload {
	return UserRefPayload{
		UserID:     user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		ProfilePic: user.ProfilePic,
	}
}

func summaryOf(user storage.User) UserSummary {
	return UserSummary{
		ID:         user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		ProfilePic: user.ProfilePic,
	}
}
