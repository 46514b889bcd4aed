package models

import "time"

// Participant is a user counted against a game's capacity.
type Participant struct {
	GameID   string    `json:"gameId"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Invitation pre-authorizes a user to join an INVITE_ONLY game. Tagged users
// hold an invitation without being participants.
type Invitation struct {
	GameID    string    `json:"gameId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
