package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/louisbranch/followgraph/internal/services/social/storage"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q queryer, query string, args ...any) (bool, error) {
	var found int
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(`+query+`)`, args...).Scan(&found); err != nil {
		return false, err
	}
	return found == 1, nil
}

const (
	followExistsQuery  = `SELECT 1 FROM follows WHERE follower_id = ? AND followed_id = ?`
	requestExistsQuery = `SELECT 1 FROM follow_requests WHERE requester_id = ? AND target_id = ?`
)

// IsFollowing reports whether followerID follows followedID.
func (s *Store) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if err := requireIDs([]string{"follower id", "followed id"}, &followerID, &followedID); err != nil {
		return false, err
	}
	found, err := exists(ctx, s.sqlDB, followExistsQuery, followerID, followedID)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return found, nil
}

// HasFollowRequest reports whether requesterID has a pending request to targetID.
func (s *Store) HasFollowRequest(ctx context.Context, requesterID, targetID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if err := requireIDs([]string{"requester id", "target id"}, &requesterID, &targetID); err != nil {
		return false, err
	}
	found, err := exists(ctx, s.sqlDB, requestExistsQuery, requesterID, targetID)
	if err != nil {
		return false, fmt.Errorf("check follow request: %w", err)
	}
	return found, nil
}

// ListFollowerIDs returns the ids following userID, sorted.
func (s *Store) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.listIDs(ctx, "list followers", userID,
		`SELECT follower_id FROM follows WHERE followed_id = ? ORDER BY follower_id ASC`)
}

// ListFollowingIDs returns the ids userID follows, sorted.
func (s *Store) ListFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return s.listIDs(ctx, "list following", userID,
		`SELECT followed_id FROM follows WHERE follower_id = ? ORDER BY followed_id ASC`)
}

// ListFollowRequestIDs returns the ids with a pending request to targetID, sorted.
func (s *Store) ListFollowRequestIDs(ctx context.Context, targetID string) ([]string, error) {
	return s.listIDs(ctx, "list follow requests", targetID,
		`SELECT requester_id FROM follow_requests WHERE target_id = ? ORDER BY requester_id ASC`)
}

func (s *Store) listIDs(ctx context.Context, label string, userID string, query string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if err := requireIDs([]string{"user id"}, &userID); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return ids, nil
}

// ListFollows returns every edge ordered by follower then followed id.
func (s *Store) ListFollows(ctx context.Context) ([]storage.Follow, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT follower_id, followed_id, created_at
		 FROM follows
		 ORDER BY follower_id ASC, followed_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	follows := make([]storage.Follow, 0)
	for rows.Next() {
		var (
			follow    storage.Follow
			createdAt int64
		)
		if err := rows.Scan(&follow.FollowerID, &follow.FollowedID, &createdAt); err != nil {
			return nil, fmt.Errorf("list follows: %w", err)
		}
		follow.CreatedAt = fromMillis(createdAt)
		follows = append(follows, follow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	return follows, nil
}

// CountFollows returns follower and following counts for userID.
func (s *Store) CountFollows(ctx context.Context, userID string) (storage.FollowCounts, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FollowCounts{}, err
	}
	if err := requireIDs([]string{"user id"}, &userID); err != nil {
		return storage.FollowCounts{}, err
	}

	var counts storage.FollowCounts
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT
		   (SELECT COUNT(*) FROM follows WHERE followed_id = ?),
		   (SELECT COUNT(*) FROM follows WHERE follower_id = ?)`,
		userID,
		userID,
	).Scan(&counts.Followers, &counts.Following)
	if err != nil {
		return storage.FollowCounts{}, fmt.Errorf("count follows: %w", err)
	}
	return counts, nil
}

// PutFollowRequest stores a pending request unless the edge or request exists.
func (s *Store) PutFollowRequest(ctx context.Context, request storage.FollowRequest) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireIDs([]string{"requester id", "target id"}, &request.RequesterID, &request.TargetID); err != nil {
		return err
	}
	if request.RequesterID == request.TargetID {
		return fmt.Errorf("target id must differ from requester id")
	}

	return s.withTx(ctx, "follow request", func(tx *sql.Tx) error {
		following, err := exists(ctx, tx, followExistsQuery, request.RequesterID, request.TargetID)
		if err != nil {
			return fmt.Errorf("check follow: %w", err)
		}
		if following {
			return storage.ErrAlreadyFollowing
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO follow_requests (requester_id, target_id, created_at) VALUES (?, ?, ?)`,
			request.RequesterID,
			request.TargetID,
			toMillis(request.CreatedAt),
		)
		switch {
		case err == nil:
			return nil
		case isUniqueViolation(err):
			return storage.ErrRequestPending
		case isForeignKeyViolation(err):
			return storage.ErrNotFound
		default:
			return fmt.Errorf("put follow request: %w", err)
		}
	})
}

// AcceptFollowRequest consumes the pending request and adds requester->target.
func (s *Store) AcceptFollowRequest(ctx context.Context, requesterID, targetID string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireIDs([]string{"requester id", "target id"}, &requesterID, &targetID); err != nil {
		return err
	}

	return s.withTx(ctx, "accept follow request", func(tx *sql.Tx) error {
		if err := deleteRequest(ctx, tx, requesterID, targetID); err != nil {
			return err
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT(follower_id, followed_id) DO NOTHING`,
			requesterID,
			targetID,
			toMillis(at),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("put follow: %w", err)
		}
		return nil
	})
}

// RejectFollowRequest discards the pending request.
func (s *Store) RejectFollowRequest(ctx context.Context, requesterID, targetID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireIDs([]string{"requester id", "target id"}, &requesterID, &targetID); err != nil {
		return err
	}

	return s.withTx(ctx, "reject follow request", func(tx *sql.Tx) error {
		return deleteRequest(ctx, tx, requesterID, targetID)
	})
}

func deleteRequest(ctx context.Context, tx *sql.Tx, requesterID, targetID string) error {
	result, err := tx.ExecContext(
		ctx,
		`DELETE FROM follow_requests WHERE requester_id = ? AND target_id = ?`,
		requesterID,
		targetID,
	)
	if err != nil {
		return fmt.Errorf("delete follow request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete follow request: %w", err)
	}
	if affected == 0 {
		return storage.ErrNoFollowRequest
	}
	return nil
}

// PutFollow adds follower->followed and drops a pending request in that direction.
func (s *Store) PutFollow(ctx context.Context, follow storage.Follow) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireIDs([]string{"follower id", "followed id"}, &follow.FollowerID, &follow.FollowedID); err != nil {
		return err
	}
	if follow.FollowerID == follow.FollowedID {
		return fmt.Errorf("followed id must differ from follower id")
	}

	return s.withTx(ctx, "follow", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO follows (follower_id, followed_id, created_at) VALUES (?, ?, ?)`,
			follow.FollowerID,
			follow.FollowedID,
			toMillis(follow.CreatedAt),
		)
		switch {
		case err == nil:
		case isUniqueViolation(err):
			return storage.ErrAlreadyFollowing
		case isForeignKeyViolation(err):
			return storage.ErrNotFound
		default:
			return fmt.Errorf("put follow: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM follow_requests WHERE requester_id = ? AND target_id = ?`,
			follow.FollowerID,
			follow.FollowedID,
		); err != nil {
			return fmt.Errorf("clear follow request: %w", err)
		}
		return nil
	})
}

// MutualUnfollow removes a->b and b->a. a must currently follow b.
func (s *Store) MutualUnfollow(ctx context.Context, a, b string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := requireIDs([]string{"user id", "other user id"}, &a, &b); err != nil {
		return err
	}

	return s.withTx(ctx, "mutual unfollow", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`, a, b)
		if err != nil {
			return fmt.Errorf("delete follow: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete follow: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFollowing
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`, b, a); err != nil {
			return fmt.Errorf("delete reverse follow: %w", err)
		}
		return nil
	})
}
