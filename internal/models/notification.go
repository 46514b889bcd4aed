package models

import "time"

// NotificationType identifies the event a notification describes.
type NotificationType string

const (
	NotificationJoinedYourPost NotificationType = "JOINED_YOUR_POST"
	NotificationTaggedInPost   NotificationType = "TAGGED_IN_POST"
)

// Notification is an inbox entry for a user.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Data      map[string]any   `json:"data"`
	CreatedAt time.Time        `json:"createdAt"`
}

// JoinedYourPost builds the event sent to a creator when someone joins.
func JoinedYourPost(creatorID string, game *Game, joinedUserID string) Notification {
	return Notification{
		UserID: creatorID,
		Type:   NotificationJoinedYourPost,
		Data: map[string]any{
			"postId":       game.ID,
			"postTitle":    game.Title,
			"joinedUserId": joinedUserID,
		},
	}
}

// TaggedInPost builds the event sent to an invited or tagged user.
func TaggedInPost(userID string, game *Game) Notification {
	return Notification{
		UserID: userID,
		Type:   NotificationTaggedInPost,
		Data: map[string]any{
			"postId":    game.ID,
			"postTitle": game.Title,
			"taggedBy":  game.CreatorID,
		},
	}
}
