package service

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrRoomClosed = errors.New("room_closed")
)

// Identity is the authenticated (uid, role) pair attached to a connection or
// request. It always comes from verified session state, never from message
// payload fields.
type Identity struct {
	UID  string
	Role string
}

func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}
