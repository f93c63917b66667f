// Package httpapi exposes the follow graph over JSON HTTP.
package httpapi

import "net/http"

// Route patterns. All of them require a session.
const (
	RouteUsers         = "/api/users"
	RouteRequests      = "/api/users/requests"
	RouteUser          = "/api/users/{id}"
	RouteFollowers     = "/api/users/followers/{userId}"
	RouteFollowing     = "/api/users/following/{userId}"
	RouteSendRequest   = "/api/users/request/{id}"
	RouteAcceptRequest = "/api/users/requests/{id}/accept"
	RouteRejectRequest = "/api/users/requests/{id}/reject"
	RouteFollow        = "/api/users/follow/{id}"
	RouteUnfollow      = "/api/users/unfollow/{id}"
	RouteDeleteAccount = "/api/users/delete"
)

func registerRoutes(mux *http.ServeMux, h handlers) {
	if mux == nil {
		return
	}
	mux.HandleFunc(http.MethodGet+" "+RouteUsers, h.handleListUsers)
	mux.HandleFunc(http.MethodGet+" "+RouteRequests, h.handleListRequests)
	mux.HandleFunc(http.MethodGet+" "+RouteUser, h.handleGetUser)
	mux.HandleFunc(http.MethodGet+" "+RouteFollowers, h.handleListFollowers)
	mux.HandleFunc(http.MethodGet+" "+RouteFollowing, h.handleListFollowing)
	mux.HandleFunc(http.MethodPost+" "+RouteSendRequest, h.handleSendRequest)
	mux.HandleFunc(http.MethodPost+" "+RouteAcceptRequest, h.handleAcceptRequest)
	mux.HandleFunc(http.MethodPost+" "+RouteRejectRequest, h.handleRejectRequest)
	mux.HandleFunc(http.MethodPost+" "+RouteFollow, h.handleFollow)
	mux.HandleFunc(http.MethodPost+" "+RouteUnfollow, h.handleUnfollow)
	mux.HandleFunc(http.MethodDelete+" "+RouteDeleteAccount, h.handleDeleteAccount)
}
