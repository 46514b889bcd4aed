package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"pickupmap/internal/models"
	"pickupmap/internal/repository"
)

// LocationStore resolves and records the places games are anchored to.
type LocationStore interface {
	Create(ctx context.Context, label string, lat, lng float64) (*models.Location, error)
	GetByID(ctx context.Context, id string) (*models.Location, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// LocationInput describes a new location created alongside a game.
type LocationInput struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// CreateGameInput carries the fields needed to host a game. Zero values for
// SkillLevel, Visibility, DurationMinutes and TotalPlayers take defaults.
type CreateGameInput struct {
	CreatorID       string
	LocationID      string
	Location        *LocationInput
	Sport           models.Sport
	Title           string
	Description     string
	SkillLevel      models.SkillLevel
	Visibility      models.Visibility
	StartTime       time.Time
	DurationMinutes int
	TotalPlayers    int
	InvitedUserIDs  []string
	TaggedUserIDs   []string
}

// UpdateGameInput holds the editable fields of a game. Nil fields are left
// unchanged.
type UpdateGameInput struct {
	Title           *string
	Description     *string
	SkillLevel      *models.SkillLevel
	Visibility      *models.Visibility
	StartTime       *time.Time
	DurationMinutes *int
	TotalPlayers    *int
}

// GameService enforces the game capacity state machine
type GameService struct {
	games       *repository.GameRepository
	invitations *repository.InvitationRepository
	locations   LocationStore
	gate        *VisibilityGate
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewGameService creates a new game service
func NewGameService(
	games *repository.GameRepository,
	invitations *repository.InvitationRepository,
	locations LocationStore,
	gate *VisibilityGate,
	notifier Notifier,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		games:       games,
		invitations: invitations,
		locations:   locations,
		gate:        gate,
		notifier:    notifier,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create validates input and stores a new game with its creator as the first
// participant. Invited and tagged users receive a TAGGED_IN_POST event.
func (s *GameService) Create(ctx context.Context, in CreateGameInput) (*models.Game, error) {
	if in.CreatorID == "" {
		return nil, ErrUnauthenticated
	}
	now := s.now()

	game := &models.Game{
		CreatorID:       in.CreatorID,
		Sport:           in.Sport,
		Description:     strings.TrimSpace(in.Description),
		SkillLevel:      in.SkillLevel,
		Visibility:      in.Visibility,
		StartTime:       in.StartTime.UTC(),
		DurationMinutes: in.DurationMinutes,
		TotalPlayers:    in.TotalPlayers,
		CreatedAt:       now,
	}
	if game.SkillLevel == "" {
		game.SkillLevel = models.SkillCasual
	}
	if game.Visibility == "" {
		game.Visibility = models.VisibilityPublic
	}
	if game.DurationMinutes == 0 {
		game.DurationMinutes = models.DefaultDurationMinutes
	}
	if game.TotalPlayers == 0 {
		game.TotalPlayers = models.DefaultTotalPlayers
	}

	var ok bool
	if game.Title, ok = models.NormalizeTitle(in.Title); !ok {
		return nil, invalid("title", "must be 1 to %d characters", models.MaxTitleLength)
	}
	if err := validateGameFields(game); err != nil {
		return nil, err
	}
	if in.StartTime.IsZero() {
		return nil, invalid("startTime", "is required")
	}
	if !game.StartTime.After(now) {
		return nil, invalid("startTime", "must be in the future")
	}
	game.ExpiresAt = models.ExpiresAtFor(game.StartTime)

	invited := normalizeUserIDs(in.InvitedUserIDs, in.CreatorID)
	tagged := normalizeUserIDs(in.TaggedUserIDs, in.CreatorID, invited...)
	if 1+len(invited) > game.TotalPlayers {
		return nil, invalid("invitedUserIds", "creator plus %d invited players exceeds totalPlayers %d", len(invited), game.TotalPlayers)
	}

	locationID, err := s.resolveLocation(ctx, in)
	if err != nil {
		return nil, err
	}
	game.LocationID = locationID

	if err := s.games.Create(ctx, game, invited, tagged); err != nil {
		return nil, translate("failed to create game", err)
	}

	s.logger.Info("game created",
		"game_id", game.ID, "creator_id", game.CreatorID, "status", game.Status,
		"invited", len(invited), "tagged", len(tagged))

	for _, userID := range append(invited, tagged...) {
		s.notify(ctx, models.TaggedInPost(userID, game))
	}
	return game, nil
}

func (s *GameService) resolveLocation(ctx context.Context, in CreateGameInput) (string, error) {
	if in.LocationID != "" {
		exists, err := s.locations.Exists(ctx, in.LocationID)
		if err != nil {
			return "", fmt.Errorf("failed to check location: %w", err)
		}
		if !exists {
			return "", invalid("locationId", "unknown location %q", in.LocationID)
		}
		return in.LocationID, nil
	}

	if in.Location == nil {
		return "", invalid("location", "locationId or location is required")
	}
	label := strings.TrimSpace(in.Location.Label)
	if label == "" {
		return "", invalid("location.label", "is required")
	}
	if math.IsNaN(in.Location.Lat) || math.IsNaN(in.Location.Lng) || !models.ValidCoordinates(in.Location.Lat, in.Location.Lng) {
		return "", invalid("location", "coordinates out of range")
	}
	loc, err := s.locations.Create(ctx, label, in.Location.Lat, in.Location.Lng)
	if err != nil {
		return "", fmt.Errorf("failed to create location: %w", err)
	}
	return loc.ID, nil
}

func validateGameFields(game *models.Game) error {
	if !game.Sport.Valid() {
		return invalid("sport", "unknown sport %q", game.Sport)
	}
	if !game.SkillLevel.Valid() {
		return invalid("skillLevel", "unknown skill level %q", game.SkillLevel)
	}
	if !game.Visibility.Valid() {
		return invalid("visibility", "unknown visibility %q", game.Visibility)
	}
	if game.DurationMinutes < models.MinDurationMinutes || game.DurationMinutes > models.MaxDurationMinutes {
		return invalid("durationMinutes", "must be between %d and %d", models.MinDurationMinutes, models.MaxDurationMinutes)
	}
	if game.TotalPlayers < models.MinTotalPlayers || game.TotalPlayers > models.MaxTotalPlayers {
		return invalid("totalPlayers", "must be between %d and %d", models.MinTotalPlayers, models.MaxTotalPlayers)
	}
	return nil
}

// normalizeUserIDs trims and de-duplicates ids, dropping blanks, the creator
// and anything in exclude.
func normalizeUserIDs(ids []string, creatorID string, exclude ...string) []string {
	seen := make(map[string]bool, len(ids)+len(exclude)+1)
	seen[creatorID] = true
	for _, id := range exclude {
		seen[id] = true
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Get returns a game with its location and participants. Terminal games and
// games past expiry return ErrGone.
func (s *GameService) Get(ctx context.Context, gameID, viewerID string) (*models.GameDetail, error) {
	game, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, translate("failed to get game", err)
	}
	if game.IsGone(s.now()) {
		return nil, ErrGone
	}

	loc, err := s.locations.GetByID(ctx, game.LocationID)
	if err != nil {
		return nil, translate("failed to get location", err)
	}
	participants, err := s.games.ListParticipants(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}

	detail := &models.GameDetail{
		Game:         *game,
		Location:     *loc,
		Participants: participants,
		JoinedCount:  len(participants),
	}
	if viewerID != "" && viewerID == game.CreatorID {
		if detail.Invitations, err = s.invitations.ListForGame(ctx, gameID); err != nil {
			return nil, fmt.Errorf("failed to get invitations: %w", err)
		}
	}
	return detail, nil
}

// Join adds userID to the game. Preconditions are checked in order
// NotFound, NotOpen, AlreadyJoined, Forbidden; the capacity check and insert
// then run atomically in the store, so a FULL game or a lost race yields
// ErrCapacityExceeded.
func (s *GameService) Join(ctx context.Context, gameID, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	game, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return translate("failed to get game", err)
	}
	now := s.now()
	if game.IsGone(now) {
		return ErrNotOpen
	}

	joined, err := s.games.IsParticipant(ctx, gameID, userID)
	if err != nil {
		return fmt.Errorf("failed to check participant: %w", err)
	}
	if joined {
		return ErrAlreadyJoined
	}

	if err := s.gate.Authorize(ctx, game, userID); err != nil {
		return err
	}

	if err := s.games.AddParticipant(ctx, gameID, userID, now); err != nil {
		return translate("failed to join game", err)
	}

	s.logger.Info("player joined", "game_id", gameID, "user_id", userID)
	s.notify(ctx, models.JoinedYourPost(game.CreatorID, game, userID))
	return nil
}

// Leave removes userID from the game. Leaving a game one has not joined, or
// one that has already ended, is a no-op. The creator must cancel or delete
// instead.
func (s *GameService) Leave(ctx context.Context, gameID, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	game, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return translate("failed to get game", err)
	}
	if userID == game.CreatorID {
		return ErrForbidden
	}

	removed, err := s.games.RemoveParticipant(ctx, gameID, userID)
	if errors.Is(err, repository.ErrGameTerminal) {
		return nil
	}
	if err != nil {
		return translate("failed to leave game", err)
	}
	if removed {
		s.logger.Info("player left", "game_id", gameID, "user_id", userID)
	}
	return nil
}

// RemoveParticipant lets the creator remove another participant
func (s *GameService) RemoveParticipant(ctx context.Context, gameID, requesterID, targetID string) error {
	game, err := s.requireCreator(ctx, gameID, requesterID)
	if err != nil {
		return err
	}
	if targetID == "" {
		return invalid("userId", "is required")
	}
	if targetID == game.CreatorID {
		return ErrInvalidState
	}

	removed, err := s.games.RemoveParticipant(ctx, gameID, targetID)
	if err != nil {
		return translate("failed to remove participant", err)
	}
	if removed {
		s.logger.Info("participant removed", "game_id", gameID, "user_id", targetID)
	}
	return nil
}

// Cancel moves the game to CANCELLED. Cancelling a game that has already
// ended leaves it unchanged and succeeds.
func (s *GameService) Cancel(ctx context.Context, gameID, requesterID string) error {
	if _, err := s.requireCreator(ctx, gameID, requesterID); err != nil {
		return err
	}

	changed, err := s.games.Cancel(ctx, gameID)
	if err != nil {
		return translate("failed to cancel game", err)
	}
	if changed {
		s.logger.Info("game cancelled", "game_id", gameID)
	}
	return nil
}

// Delete permanently removes the game, its participants and its
// invitations, from any state.
func (s *GameService) Delete(ctx context.Context, gameID, requesterID string) error {
	if _, err := s.requireCreator(ctx, gameID, requesterID); err != nil {
		return err
	}
	if err := s.games.Delete(ctx, gameID); err != nil {
		return translate("failed to delete game", err)
	}
	s.logger.Info("game deleted", "game_id", gameID)
	return nil
}

// Update edits a live game. Changing the start time moves the expiry with
// it; shrinking totalPlayers below the participant count is rejected.
func (s *GameService) Update(ctx context.Context, gameID, requesterID string, in UpdateGameInput) (*models.Game, error) {
	game, err := s.requireCreator(ctx, gameID, requesterID)
	if err != nil {
		return nil, err
	}
	if game.Status.IsTerminal() {
		return nil, ErrInvalidState
	}

	if in.Title != nil {
		var ok bool
		if game.Title, ok = models.NormalizeTitle(*in.Title); !ok {
			return nil, invalid("title", "must be 1 to %d characters", models.MaxTitleLength)
		}
	}
	if in.Description != nil {
		game.Description = strings.TrimSpace(*in.Description)
	}
	if in.SkillLevel != nil {
		game.SkillLevel = *in.SkillLevel
	}
	if in.Visibility != nil {
		game.Visibility = *in.Visibility
	}
	if in.DurationMinutes != nil {
		game.DurationMinutes = *in.DurationMinutes
	}
	if in.TotalPlayers != nil {
		game.TotalPlayers = *in.TotalPlayers
	}
	if in.StartTime != nil {
		if !in.StartTime.After(s.now()) {
			return nil, invalid("startTime", "must be in the future")
		}
		game.StartTime = in.StartTime.UTC()
		game.ExpiresAt = models.ExpiresAtFor(game.StartTime)
	}
	if err := validateGameFields(game); err != nil {
		return nil, err
	}

	if err := s.games.UpdateDetails(ctx, game); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			return nil, invalid("totalPlayers", "cannot be lower than the current number of participants")
		}
		return nil, translate("failed to update game", err)
	}
	s.logger.Info("game updated", "game_id", gameID, "status", game.Status)
	return game, nil
}

// Invite records invitations for a live game and notifies each new invitee.
func (s *GameService) Invite(ctx context.Context, gameID, requesterID string, userIDs []string) error {
	game, err := s.requireCreator(ctx, gameID, requesterID)
	if err != nil {
		return err
	}
	if game.Status.IsTerminal() {
		return ErrInvalidState
	}

	ids := normalizeUserIDs(userIDs, game.CreatorID)
	if len(ids) == 0 {
		return invalid("userIds", "at least one user is required")
	}

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		has, err := s.invitations.HasInvite(ctx, gameID, id)
		if err != nil {
			return fmt.Errorf("failed to check invitation: %w", err)
		}
		if !has {
			fresh = append(fresh, id)
		}
	}

	if err := s.invitations.Add(ctx, gameID, fresh, s.now()); err != nil {
		return fmt.Errorf("failed to invite users: %w", err)
	}
	for _, id := range fresh {
		s.notify(ctx, models.TaggedInPost(id, game))
	}
	return nil
}

// SweepExpired moves every non-terminal game whose expiry is at or before
// now to EXPIRED. Running it again with the same now changes nothing.
func (s *GameService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.games.ExpireDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired games: %w", err)
	}
	return n, nil
}

// QueryViewport lists live games inside the bounding box
func (s *GameService) QueryViewport(ctx context.Context, b models.Bounds, filter models.ListFilter) ([]models.GameListing, error) {
	if err := filter.Validate(); err != nil {
		return nil, invalid("filter", "%v", err)
	}
	listings, err := s.games.ListByBounds(ctx, b, filter, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to query viewport: %w", err)
	}
	return listings, nil
}

// QuerySearch lists live games matching text
func (s *GameService) QuerySearch(ctx context.Context, text string, filter models.ListFilter) ([]models.GameListing, error) {
	if err := filter.Validate(); err != nil {
		return nil, invalid("filter", "%v", err)
	}
	listings, err := s.games.ListBySearch(ctx, text, filter, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to search games: %w", err)
	}
	return listings, nil
}

// MyGames lists the games userID hosts or has joined, in any status
func (s *GameService) MyGames(ctx context.Context, userID string, filter models.MyGamesFilter) ([]models.GameListing, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := filter.Validate(); err != nil {
		return nil, invalid("filter", "%v", err)
	}

	all, err := s.games.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user games: %w", err)
	}

	now := s.now()
	out := make([]models.GameListing, 0, len(all))
	for _, l := range all {
		if filter.Role != "all" && l.Role != filter.Role {
			continue
		}
		if filter.Sport != "" && l.Sport != filter.Sport {
			continue
		}
		if !filter.MatchesDate(l.StartTime, now) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// JoinedIDs returns the ids of games userID participates in. Anonymous
// callers get an empty list.
func (s *GameService) JoinedIDs(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return []string{}, nil
	}
	ids, err := s.games.JoinedGameIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined games: %w", err)
	}
	return ids, nil
}

func (s *GameService) requireCreator(ctx context.Context, gameID, requesterID string) (*models.Game, error) {
	if requesterID == "" {
		return nil, ErrUnauthenticated
	}
	game, err := s.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, translate("failed to get game", err)
	}
	if game.CreatorID != requesterID {
		return nil, ErrForbidden
	}
	return game, nil
}

// notify runs after the mutation has committed.
func (s *GameService) notify(ctx context.Context, n models.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	deliver(context.WithoutCancel(ctx), s.notifier, s.logger, n)
}
