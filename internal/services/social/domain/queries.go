package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/louisbranch/followgraph/internal/services/social/storage"
)

// ListUsers returns every user except actor, flagging mutual follows.
func (s *Service) ListUsers(ctx context.Context, actorID string) ([]DirectoryEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, invalidParams()
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, internal(err)
	}
	follows, err := s.store.ListFollows(ctx)
	if err != nil {
		return nil, internal(err)
	}

	followers := make(map[string][]string)
	following := make(map[string][]string)
	edges := make(map[[2]string]bool, len(follows))
	for _, f := range follows {
		followers[f.FollowedID] = append(followers[f.FollowedID], f.FollowerID)
		following[f.FollowerID] = append(following[f.FollowerID], f.FollowedID)
		edges[[2]string{f.FollowerID, f.FollowedID}] = true
	}

	entries := make([]DirectoryEntry, 0, len(users))
	for _, user := range users {
		if user.ID == actorID {
			continue
		}
		entries = append(entries, DirectoryEntry{
			Profile: profileOf(user, followers[user.ID], following[user.ID]),
			IsMutualFollow: edges[[2]string{actorID, user.ID}] &&
				edges[[2]string{user.ID, actorID}],
		})
	}
	return entries, nil
}

// GetUser returns one profile.
func (s *Service) GetUser(ctx context.Context, userID string) (Profile, error) {
	if err := s.ready(); err != nil {
		return Profile{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, invalidParams()
	}

	user, err := s.lookup(ctx, userID, "User not found")
	if err != nil {
		return Profile{}, err
	}
	followers, err := s.store.ListFollowerIDs(ctx, userID)
	if err != nil {
		return Profile{}, internal(err)
	}
	following, err := s.store.ListFollowingIDs(ctx, userID)
	if err != nil {
		return Profile{}, internal(err)
	}
	return profileOf(user, followers, following), nil
}

type relation int

const (
	relationRequests relation = iota
	relationFollowers
	relationFollowing
)

// ListFollowRequests returns the users with a pending request to actor.
func (s *Service) ListFollowRequests(ctx context.Context, actorID string) ([]UserSummary, error) {
	return s.listRelated(ctx, actorID, relationRequests)
}

// ListFollowers returns the users following userID.
func (s *Service) ListFollowers(ctx context.Context, userID string) ([]UserSummary, error) {
	return s.listRelated(ctx, userID, relationFollowers)
}

// ListFollowing returns the users userID follows.
func (s *Service) ListFollowing(ctx context.Context, userID string) ([]UserSummary, error) {
	return s.listRelated(ctx, userID, relationFollowing)
}

func (s *Service) listRelated(ctx context.Context, userID string, rel relation) ([]UserSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalidParams()
	}

	if _, err := s.lookup(ctx, userID, "User not found"); err != nil {
		return nil, err
	}
	var (
		ids []string
		err error
	)
	switch rel {
	case relationRequests:
		ids, err = s.store.ListFollowRequestIDs(ctx, userID)
	case relationFollowers:
		ids, err = s.store.ListFollowerIDs(ctx, userID)
	default:
		ids, err = s.store.ListFollowingIDs(ctx, userID)
	}
	if err != nil {
		return nil, internal(err)
	}

	summaries := make([]UserSummary, 0, len(ids))
	for _, id := range ids {
		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			// Deleted between the two reads.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, internal(err)
		}
		summaries = append(summaries, summaryOf(user))
	}
	return summaries, nil
}

func profileOf(user storage.User, followers, following []string) Profile {
	if followers == nil {
		followers = []string{}
	}
	if following == nil {
		following = []string{}
	}
	return Profile{
		ID:         user.ID,
		Username:   user.Username,
		FullName:   user.FullName,
		Email:      user.Email,
		ProfilePic: user.ProfilePic,
		Followers:  followers,
		Following:  following,
		CreatedAt:  user.CreatedAt,
	}
}
