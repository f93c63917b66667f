// Package sqlite provides the SQLite-backed follow graph store.
//
// Follow edges are stored once as directed (follower_id, followed_id) rows, so
// a user's followers and following sets are projections of the same table and
// cannot drift apart. Pending requests live in follow_requests. Every foreign
// key cascades on user deletion.
package sqlite
