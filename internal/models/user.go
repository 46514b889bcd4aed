package models

import "time"

// User mirrors the profile fields of an externally authenticated user.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName falls back to the email local part when no name is set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	if u.Email != "" {
		return u.Email
	}
	return "Someone"
}

// FriendRequestStatus is the state of a friend request.
type FriendRequestStatus string

const (
	FriendPending  FriendRequestStatus = "PENDING"
	FriendAccepted FriendRequestStatus = "ACCEPTED"
	FriendDeclined FriendRequestStatus = "DECLINED"
)
