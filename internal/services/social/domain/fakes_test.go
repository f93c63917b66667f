package domain

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/followgraph/internal/services/social/storage"
)

type edge struct{ from, to string }

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]storage.User
	order    []string
	follows  map[edge]time.Time
	requests map[edge]time.Time
	failWith error
}

func newFakeStore(users ...storage.User) *fakeStore {
	s := &fakeStore{
		users:    make(map[string]storage.User),
		follows:  make(map[edge]time.Time),
		requests: make(map[edge]time.Time),
	}
	for _, u := range users {
		s.users[u.ID] = u
		s.order = append(s.order, u.ID)
	}
	return s
}

func (s *fakeStore) PutUser(_ context.Context, user storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		s.order = append(s.order, user.ID)
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return storage.User{}, s.failWith
	}
	user, ok := s.users[userID]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *fakeStore) ListUsers(context.Context) ([]storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.User, 0, len(s.order))
	for _, id := range s.order {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, userID)
	for e := range s.follows {
		if e.from == userID || e.to == userID {
			delete(s.follows, e)
		}
	}
	for e := range s.requests {
		if e.from == userID || e.to == userID {
			delete(s.requests, e)
		}
	}
	return nil
}

func (s *fakeStore) IsFollowing(_ context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.follows[edge{a, b}]
	return ok, nil
}

func (s *fakeStore) HasFollowRequest(_ context.Context, a, b string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requests[edge{a, b}]
	return ok, nil
}

func (s *fakeStore) collect(set map[edge]time.Time, match func(edge) (string, bool)) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for e := range set {
		if id, ok := match(e); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *fakeStore) ListFollowerIDs(_ context.Context, userID string) ([]string, error) {
	return s.collect(s.follows, func(e edge) (string, bool) { return e.from, e.to == userID }), nil
}

func (s *fakeStore) ListFollowingIDs(_ context.Context, userID string) ([]string, error) {
	return s.collect(s.follows, func(e edge) (string, bool) { return e.to, e.from == userID }), nil
}

func (s *fakeStore) ListFollowRequestIDs(_ context.Context, userID string) ([]string, error) {
	return s.collect(s.requests, func(e edge) (string, bool) { return e.from, e.to == userID }), nil
}

func (s *fakeStore) ListFollows(context.Context) ([]storage.Follow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.Follow, 0, len(s.follows))
	for e, at := range s.follows {
		out = append(out, storage.Follow{FollowerID: e.from, FollowedID: e.to, CreatedAt: at})
	}
	return out, nil
}

func (s *fakeStore) CountFollows(_ context.Context, userID string) (storage.FollowCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts storage.FollowCounts
	for e := range s.follows {
		if e.to == userID {
			counts.Followers++
		}
		if e.from == userID {
			counts.Following++
		}
	}
	return counts, nil
}

func (s *fakeStore) PutFollowRequest(_ context.Context, r storage.FollowRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.follows[edge{r.RequesterID, r.TargetID}]; ok {
		return storage.ErrAlreadyFollowing
	}
	if _, ok := s.requests[edge{r.RequesterID, r.TargetID}]; ok {
		return storage.ErrRequestPending
	}
	s.requests[edge{r.RequesterID, r.TargetID}] = r.CreatedAt
	return nil
}

func (s *fakeStore) AcceptFollowRequest(_ context.Context, requesterID, targetID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[edge{requesterID, targetID}]; !ok {
		return storage.ErrNoFollowRequest
	}
	delete(s.requests, edge{requesterID, targetID})
	s.follows[edge{requesterID, targetID}] = at
	return nil
}

func (s *fakeStore) RejectFollowRequest(_ context.Context, requesterID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[edge{requesterID, targetID}]; !ok {
		return storage.ErrNoFollowRequest
	}
	delete(s.requests, edge{requesterID, targetID})
	return nil
}

func (s *fakeStore) PutFollow(_ context.Context, f storage.Follow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.follows[edge{f.FollowerID, f.FollowedID}]; ok {
		return storage.ErrAlreadyFollowing
	}
	s.follows[edge{f.FollowerID, f.FollowedID}] = f.CreatedAt
	delete(s.requests, edge{f.FollowerID, f.FollowedID})
	return nil
}

func (s *fakeStore) MutualUnfollow(_ context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.follows[edge{a, b}]; !ok {
		return storage.ErrNotFollowing
	}
	delete(s.follows, edge{a, b})
	delete(s.follows, edge{b, a})
	return nil
}

type dispatchCall struct {
	kind    string
	userIDs []string
	event   Event
}

type recordingDispatcher struct {
	calls []dispatchCall
}

func (d *recordingDispatcher) NotifyUser(_ context.Context, userID string, event Event) {
	d.calls = append(d.calls, dispatchCall{kind: "user", userIDs: []string{userID}, event: event})
}

func (d *recordingDispatcher) NotifyUsers(_ context.Context, userIDs []string, event Event) {
	d.calls = append(d.calls, dispatchCall{kind: "users", userIDs: append([]string(nil), userIDs...), event: event})
}

func (d *recordingDispatcher) Broadcast(_ context.Context, event Event) {
	d.calls = append(d.calls, dispatchCall{kind: "broadcast", event: event})
}

type recordingPublisher struct {
	events []RelationshipEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event RelationshipEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type recordingObserver struct {
	ops     []string
	results []error
}

func (o *recordingObserver) ObserveTransition(op string, err error) {
	o.ops = append(o.ops, op)
	o.results = append(o.results, err)
}

var errBoom = errors.New("boom")
