package httpapi

import (
	"time"

	"github.com/louisbranch/followgraph/internal/services/social/domain"
)

type profileView struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	Followers  []string  `json:"followers"`
	Following  []string  `json:"following"`
	CreatedAt  time.Time `json:"createdAt"`
}

type directoryEntryView struct {
	profileView
	IsMutualFollow bool `json:"isMutualFollow"`
}

type summaryView struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

type userRefView struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

type sendRequestResponse struct {
	Message  string      `json:"message"`
	Receiver userRefView `json:"receiver"`
}

type acceptRequestResponse struct {
	Message  string      `json:"message"`
	Follower summaryView `json:"follower"`
}

type followResponse struct {
	Message        string `json:"message"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
}

type unfollowResponse struct {
	Message             string      `json:"message"`
	MyFollowersCount    int         `json:"myFollowersCount"`
	MyFollowingCount    int         `json:"myFollowingCount"`
	TheirFollowersCount int         `json:"theirFollowersCount"`
	TheirFollowingCount int         `json:"theirFollowingCount"`
	UnfollowedUser      userRefView `json:"unfollowedUser"`
}

func newProfileView(p domain.Profile) profileView {
	followers, following := p.Followers, p.Following
	if followers == nil {
		followers = []string{}
	}
	if following == nil {
		following = []string{}
	}
	return profileView{
		ID:         p.ID,
		Username:   p.Username,
		FullName:   p.FullName,
		Email:      p.Email,
		ProfilePic: p.ProfilePic,
		Followers:  followers,
		Following:  following,
		CreatedAt:  p.CreatedAt,
	}
}

func newSummaryView(s domain.UserSummary) summaryView {
	return summaryView{ID: s.ID, Username: s.Username, FullName: s.FullName, ProfilePic: s.ProfilePic}
}

func newUserRefView(s domain.UserSummary) userRefView {
	return userRefView{ID: s.ID, Username: s.Username, FullName: s.FullName}
}
