// Package storage defines persistence contracts for the follow graph.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested user record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a username or email is already taken.
var ErrAlreadyExists = errors.New("record already exists")

// ErrAlreadyFollowing indicates the follow edge already exists.
var ErrAlreadyFollowing = errors.New("follow edge already exists")

// ErrRequestPending indicates a follow request is already pending.
var ErrRequestPending = errors.New("follow request already pending")

// ErrNoFollowRequest indicates no pending follow request matched.
var ErrNoFollowRequest = errors.New("follow request not found")

// ErrNotFollowing indicates the follow edge to remove does not exist.
var ErrNotFollowing = errors.New("follow edge not found")

// User stores one directory entry.
type User struct {
	ID         string
	Username   string
	FullName   string
	Email      string
	ProfilePic string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Follow stores one directed edge: FollowerID follows FollowedID.
type Follow struct {
	FollowerID string
	FollowedID string
	CreatedAt  time.Time
}

// FollowRequest stores one pending request from RequesterID to TargetID.
type FollowRequest struct {
	RequesterID string
	TargetID    string
	CreatedAt   time.Time
}

// FollowCounts summarizes one user's edges.
type FollowCounts struct {
	Followers int
	Following int
}

// UserStore persists directory entries.
type UserStore interface {
	PutUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// DeleteUser removes the user and every edge or request referencing it.
	DeleteUser(ctx context.Context, userID string) error
}

// GraphStore persists follow edges and pending requests. Each mutation is
// atomic and re-checks its precondition inside the transaction.
type GraphStore interface {
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	HasFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error)
	ListFollowerIDs(ctx context.Context, userID string) ([]string, error)
	ListFollowingIDs(ctx context.Context, userID string) ([]string, error)
	ListFollowRequestIDs(ctx context.Context, targetID string) ([]string, error)
	ListFollows(ctx context.Context) ([]Follow, error)
	CountFollows(ctx context.Context, userID string) (FollowCounts, error)

	// PutFollowRequest fails with ErrAlreadyFollowing or ErrRequestPending.
	PutFollowRequest(ctx context.Context, request FollowRequest) error
	// AcceptFollowRequest removes the request and adds requester->target,
	// failing with ErrNoFollowRequest when nothing is pending.
	AcceptFollowRequest(ctx context.Context, requesterID, targetID string, at time.Time) error
	// RejectFollowRequest removes the request, failing with ErrNoFollowRequest.
	RejectFollowRequest(ctx context.Context, requesterID, targetID string) error
	// PutFollow adds the edge and clears any stale request in the same
	// direction, failing with ErrAlreadyFollowing.
	PutFollow(ctx context.Context, follow Follow) error
	// MutualUnfollow removes both directed edges between a and b, failing with
	// ErrNotFollowing when a does not follow b.
	MutualUnfollow(ctx context.Context, a, b string) error
}

// Store is the full persistence surface used by the relationship service.
type Store interface {
	UserStore
	GraphStore
}
