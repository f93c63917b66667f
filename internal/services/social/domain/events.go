package domain

import (
	"context"
	"time"
)

// Live event names delivered to connected clients.
const (
	EventNewFollowRequest = "new_follow_request"
	EventFollowRequest    = "follow_request"
	EventRequestAccepted  = "requestAccepted"
	EventRequestRejected  = "requestRejected"
	EventFollow           = "follow"
	EventMutualUnfollow   = "mutualUnfollow"
)

// Event is one live notification: a name plus a JSON-encodable payload.
type Event struct {
	Name    string `json:"type"`
	Payload any    `json:"payload"`
}

// UserRefPayload identifies the acting user in new_follow_request and requestAccepted.
type UserRefPayload struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

// RequestRejectedPayload names the user who rejected the request.
type RequestRejectedPayload struct {
	UserID string `json:"userId"`
}

// FollowPayload describes a new follower->followed edge.
type FollowPayload struct {
	FollowerID string `json:"followerId"`
	FollowedID string `json:"followedId"`
}

// FollowRequestPayload is the legacy broadcast sent alongside new_follow_request.
type FollowRequestPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MutualUnfollowPayload describes a severed relationship.
type MutualUnfollowPayload struct {
	InitiatorID   string `json:"initiatorId"`
	OtherUserID   string `json:"otherUserId"`
	InitiatorName string `json:"initiatorName"`
	OtherUserName string `json:"otherUserName"`
}

// Dispatcher pushes live events to connected users. Implementations swallow
// delivery failures; callers never observe them.
type Dispatcher interface {
	NotifyUser(ctx context.Context, userID string, event Event)
	NotifyUsers(ctx context.Context, userIDs []string, event Event)
	Broadcast(ctx context.Context, event Event)
}

// Relationship event log types.
const (
	RelationshipFollowRequested = "follow_requested"
	RelationshipRequestAccepted = "follow_request_accepted"
	RelationshipRequestRejected = "follow_request_rejected"
	RelationshipFollowed        = "followed"
	RelationshipMutualUnfollow  = "mutual_unfollowed"
	RelationshipAccountDeleted  = "account_deleted"
)

// RelationshipEvent records one committed transition for downstream consumers.
type RelationshipEvent struct {
	Type       string    `json:"type"`
	ActorID    string    `json:"actorId"`
	TargetID   string    `json:"targetId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher appends relationship events to a durable log.
type EventPublisher interface {
	Publish(ctx context.Context, event RelationshipEvent) error
}

// TransitionObserver records the outcome of each operation.
type TransitionObserver interface {
	ObserveTransition(op string, err error)
}

type noopDispatcher struct{}

func (noopDispatcher) NotifyUser(context.Context, string, Event)    {}
func (noopDispatcher) NotifyUsers(context.Context, []string, Event) {}
func (noopDispatcher) Broadcast(context.Context, Event)             {}
