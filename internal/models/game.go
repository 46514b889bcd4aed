package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Sport is the kind of game being played.
type Sport string

const (
	SportBasketball   Sport = "BASKETBALL"
	SportSoccer       Sport = "SOCCER"
	SportTennis       Sport = "TENNIS"
	SportVolleyball   Sport = "VOLLEYBALL"
	SportPickleball   Sport = "PICKLEBALL"
	SportUltimate     Sport = "ULTIMATE"
	SportFlagFootball Sport = "FLAG_FOOTBALL"
	SportOther        Sport = "OTHER"
)

// Valid reports whether s is a known sport.
func (s Sport) Valid() bool {
	switch s {
	case SportBasketball, SportSoccer, SportTennis, SportVolleyball,
		SportPickleball, SportUltimate, SportFlagFootball, SportOther:
		return true
	}
	return false
}

// SkillLevel describes the expected level of play.
type SkillLevel string

const (
	SkillCasual      SkillLevel = "CASUAL"
	SkillMedium      SkillLevel = "MEDIUM"
	SkillCompetitive SkillLevel = "COMPETITIVE"
)

func (s SkillLevel) Valid() bool {
	switch s {
	case SkillCasual, SkillMedium, SkillCompetitive:
		return true
	}
	return false
}

// Visibility controls who may join a game.
type Visibility string

const (
	VisibilityPublic     Visibility = "PUBLIC"
	VisibilityFriends    Visibility = "FRIENDS"
	VisibilityInviteOnly Visibility = "INVITE_ONLY"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityInviteOnly:
		return true
	}
	return false
}

// GameStatus is the capacity state of a game. CANCELLED and EXPIRED are terminal.
type GameStatus string

const (
	StatusOpen      GameStatus = "OPEN"
	StatusFull      GameStatus = "FULL"
	StatusCancelled GameStatus = "CANCELLED"
	StatusExpired   GameStatus = "EXPIRED"
)

func (s GameStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusFull, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further participant changes are allowed.
func (s GameStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// StatusForCount derives OPEN or FULL from a participant count.
func StatusForCount(count, totalPlayers int) GameStatus {
	if count >= totalPlayers {
		return StatusFull
	}
	return StatusOpen
}

const (
	MinDurationMinutes     = 15
	MaxDurationMinutes     = 480
	DefaultDurationMinutes = 90

	MinTotalPlayers     = 2
	MaxTotalPlayers     = 50
	DefaultTotalPlayers = 6

	MaxTitleLength = 200

	// ExpiryOffset is added to StartTime to get ExpiresAt, independent of duration.
	ExpiryOffset = 30 * time.Minute
)

// ExpiresAtFor returns the expiry instant for a game starting at start.
func ExpiresAtFor(start time.Time) time.Time {
	return start.Add(ExpiryOffset).UTC()
}

// NormalizeTitle trims surrounding whitespace and reports whether the result
// has an allowed length.
func NormalizeTitle(title string) (string, bool) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	return title, n >= 1 && n <= MaxTitleLength
}

// Game is a hostable, joinable pickup session.
type Game struct {
	ID              string     `json:"id"`
	CreatorID       string     `json:"creatorId"`
	LocationID      string     `json:"locationId"`
	Sport           Sport      `json:"sport"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SkillLevel      SkillLevel `json:"skillLevel"`
	Visibility      Visibility `json:"visibility"`
	StartTime       time.Time  `json:"startTime"`
	DurationMinutes int        `json:"durationMinutes"`
	TotalPlayers    int        `json:"totalPlayers"`
	Status          GameStatus `json:"status"`
	ExpiresAt       time.Time  `json:"expiresAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// IsGone reports whether the game should no longer be shown as live.
func (g *Game) IsGone(now time.Time) bool {
	return g.Status.IsTerminal() || !g.ExpiresAt.After(now)
}

// GameListing is a game row returned by discovery queries.
type GameListing struct {
	Game
	JoinedCount   int     `json:"joinedCount"`
	LocationLabel string  `json:"locationLabel"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	CreatorName   string  `json:"creatorName,omitempty"`
	// Role is set on personal listings: "hosting" or "participant".
	Role string `json:"role,omitempty"`
}

// NeedsPlayers reports whether there are open slots.
func (l *GameListing) NeedsPlayers() bool {
	return l.JoinedCount < l.TotalPlayers
}

// GameDetail is a single game with its location and participants.
type GameDetail struct {
	Game
	Location     Location      `json:"location"`
	Participants []Participant `json:"participants"`
	JoinedCount  int           `json:"joinedCount"`
	// Invitations is only filled for the creator.
	Invitations []Invitation `json:"invitations,omitempty"`
}
