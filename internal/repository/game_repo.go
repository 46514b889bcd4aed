package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

// SearchLimit caps free-text search results.
const SearchLimit = 100

const gameColumns = `g.id, g.creator_id, g.location_id, g.sport, g.title, g.description,
	g.skill_level, g.visibility, g.start_time, g.duration_minutes, g.total_players,
	g.status, g.expires_at, g.created_at`

const listingSelect = `
	SELECT ` + gameColumns + `,
		l.label, l.lat, l.lng, COALESCE(u.name, ''),
		(SELECT COUNT(*) FROM game_participants gp WHERE gp.game_id = g.id)
	FROM games g
	JOIN locations l ON l.id = g.location_id
	LEFT JOIN users u ON u.id = g.creator_id`

// GameRepository handles database operations for games and their participants
type GameRepository struct {
	db *database.DB
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *database.DB) *GameRepository {
	return &GameRepository{db: db}
}

func scanGame(s rowScanner, g *models.Game, extra ...any) error {
	dest := []any{
		&g.ID, &g.CreatorID, &g.LocationID, &g.Sport, &g.Title, &g.Description,
		&g.SkillLevel, &g.Visibility, &g.StartTime, &g.DurationMinutes, &g.TotalPlayers,
		&g.Status, &g.ExpiresAt, &g.CreatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	g.StartTime = g.StartTime.UTC()
	g.ExpiresAt = g.ExpiresAt.UTC()
	g.CreatedAt = g.CreatedAt.UTC()
	return nil
}

// Create inserts a game together with its creator as the first participant.
// Invited users become participants and receive an invitation; tagged users
// only receive an invitation. Callers pass de-duplicated lists that exclude
// the creator. The stored status is FULL when the invitees fill the game.
func (r *GameRepository) Create(ctx context.Context, game *models.Game, invitedIDs, taggedIDs []string) error {
	if game.ID == "" {
		game.ID = uuid.NewString()
	}

	count := 1 + len(invitedIDs)
	if count > game.TotalPlayers {
		return ErrCapacityExceeded
	}
	game.Status = models.StatusForCount(count, game.TotalPlayers)

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO games (id, creator_id, location_id, sport, title, description, skill_level,
				visibility, start_time, duration_minutes, total_players, status, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			game.ID, game.CreatorID, game.LocationID, game.Sport, game.Title, game.Description,
			game.SkillLevel, game.Visibility, game.StartTime.UTC(), game.DurationMinutes,
			game.TotalPlayers, game.Status, game.ExpiresAt.UTC(), game.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert game: %w", err)
		}

		if err := insertParticipant(ctx, tx, game.ID, game.CreatorID, game.CreatedAt); err != nil {
			return err
		}
		for _, userID := range invitedIDs {
			if err := insertParticipant(ctx, tx, game.ID, userID, game.CreatedAt); err != nil {
				return err
			}
			if err := insertInvitation(ctx, tx, game.ID, userID, game.CreatedAt); err != nil {
				return err
			}
		}
		for _, userID := range taggedIDs {
			if err := insertInvitation(ctx, tx, game.ID, userID, game.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func insertParticipant(ctx context.Context, q database.DBTX, gameID, userID string, joinedAt time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO game_participants (game_id, user_id, joined_at) VALUES (?, ?, ?)",
		gameID, userID, joinedAt.UTC(),
	)
	if err != nil {
		if q.GetDialect().IsUniqueViolation(err) {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("failed to insert participant: %w", err)
	}
	return nil
}

// GetByID retrieves a game by ID
func (r *GameRepository) GetByID(ctx context.Context, id string) (*models.Game, error) {
	query := "SELECT " + gameColumns + " FROM games g WHERE g.id = ?"

	game := &models.Game{}
	err := scanGame(r.db.QueryRowContext(ctx, query, id), game)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// ListByBounds returns live games whose location lies inside b, ordered by
// start time.
func (r *GameRepository) ListByBounds(ctx context.Context, b models.Bounds, filter models.ListFilter, now time.Time) ([]models.GameListing, error) {
	var sb strings.Builder
	args := make([]any, 0, 8)

	sb.WriteString(listingSelect)
	args = writeDiscoveryFilter(&sb, args, filter, now)
	sb.WriteString(" AND l.lat BETWEEN ? AND ? AND l.lng BETWEEN ? AND ?")
	args = append(args, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	sb.WriteString(" ORDER BY g.start_time ASC")

	return r.queryListings(ctx, sb.String(), args...)
}

// ListBySearch matches text against the location label and the creator's
// name and email, case-insensitively. Blank text yields an empty list.
func (r *GameRepository) ListBySearch(ctx context.Context, text string, filter models.ListFilter, now time.Time) ([]models.GameListing, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []models.GameListing{}, nil
	}

	var sb strings.Builder
	args := make([]any, 0, 10)

	sb.WriteString(listingSelect)
	args = writeDiscoveryFilter(&sb, args, filter, now)

	like := r.db.Dialect.LikeOperator()
	pattern := "%" + escapeLike(text) + "%"
	fmt.Fprintf(&sb, " AND (l.label %[1]s ? ESCAPE '!' OR u.name %[1]s ? ESCAPE '!' OR u.email %[1]s ? ESCAPE '!')", like)
	args = append(args, pattern, pattern, pattern)

	fmt.Fprintf(&sb, " ORDER BY g.start_time ASC LIMIT %d", SearchLimit)

	return r.queryListings(ctx, sb.String(), args...)
}

// writeDiscoveryFilter appends the WHERE clause shared by discovery queries.
// Terminal games and games past expiry are always excluded.
func writeDiscoveryFilter(sb *strings.Builder, args []any, filter models.ListFilter, now time.Time) []any {
	now = now.UTC()
	sb.WriteString(" WHERE g.status NOT IN ('CANCELLED', 'EXPIRED') AND g.expires_at > ?")
	args = append(args, now)

	if from, to, ok := filter.Window.Range(now); ok {
		sb.WriteString(" AND g.start_time >= ? AND g.start_time <= ?")
		args = append(args, from, to)
	}
	if filter.Sport != "" {
		sb.WriteString(" AND g.sport = ?")
		args = append(args, filter.Sport)
	}
	if filter.NeedsPlayersOnly {
		sb.WriteString(" AND (SELECT COUNT(*) FROM game_participants gp WHERE gp.game_id = g.id) < g.total_players")
	}
	return args
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// ListForUser returns every game the user hosts or has joined, ordered by
// start time, with Role set on each listing.
func (r *GameRepository) ListForUser(ctx context.Context, userID string) ([]models.GameListing, error) {
	query := listingSelect + `
		WHERE g.creator_id = ?
			OR EXISTS (SELECT 1 FROM game_participants p WHERE p.game_id = g.id AND p.user_id = ?)
		ORDER BY g.start_time ASC`

	listings, err := r.queryListings(ctx, query, userID, userID)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		if listings[i].CreatorID == userID {
			listings[i].Role = "hosting"
		} else {
			listings[i].Role = "participant"
		}
	}
	return listings, nil
}

func (r *GameRepository) queryListings(ctx context.Context, query string, args ...any) ([]models.GameListing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	listings := []models.GameListing{}
	for rows.Next() {
		var l models.GameListing
		if err := scanGame(rows, &l.Game, &l.LocationLabel, &l.Lat, &l.Lng, &l.CreatorName, &l.JoinedCount); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate games: %w", err)
	}
	return listings, nil
}

// JoinedGameIDs returns the IDs of all games the user participates in
func (r *GameRepository) JoinedGameIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT game_id FROM game_participants WHERE user_id = ? ORDER BY joined_at", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined games: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatus moves a game from one status to another. It reports false
// when the game was not in the from status.
func (r *GameRepository) UpdateStatus(ctx context.Context, id string, from, to models.GameStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE games SET status = ? WHERE id = ? AND status = ?", to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update game status: %w", err)
	}
	return affected(result)
}

// Cancel moves an OPEN or FULL game to CANCELLED. It reports false when the
// game was already terminal or does not exist.
func (r *GameRepository) Cancel(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE games SET status = ? WHERE id = ? AND status IN (?, ?)",
		models.StatusCancelled, id, models.StatusOpen, models.StatusFull,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel game: %w", err)
	}
	return affected(result)
}

// lockGame reads the mutable capacity fields of a game inside tx, holding a
// row lock where the dialect supports one.
func lockGame(ctx context.Context, tx *database.Tx, id string) (models.GameStatus, int, error) {
	var status models.GameStatus
	var total int
	query := "SELECT status, total_players FROM games WHERE id = ?" + tx.GetDialect().LockClause()
	err := tx.QueryRowContext(ctx, query, id).Scan(&status, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrGameNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to lock game: %w", err)
	}
	return status, total, nil
}

func countParticipants(ctx context.Context, q database.DBTX, gameID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM game_participants WHERE game_id = ?", gameID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// AddParticipant joins userID to the game in a single transaction: it locks
// the game, re-validates OPEN status, checks capacity, inserts the
// participant and flips OPEN to FULL when the last slot is taken. A FULL game
// yields ErrCapacityExceeded and a terminal one ErrGameNotOpen.
func (r *GameRepository) AddParticipant(ctx context.Context, gameID, userID string, now time.Time) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		status, total, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if status == models.StatusFull {
			return ErrCapacityExceeded
		}
		if status != models.StatusOpen {
			return ErrGameNotOpen
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM game_participants WHERE game_id = ? AND user_id = ?", gameID, userID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if exists > 0 {
			return ErrAlreadyJoined
		}

		count, err := countParticipants(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if count >= total {
			return ErrCapacityExceeded
		}

		if err := insertParticipant(ctx, tx, gameID, userID, now); err != nil {
			return err
		}

		if count+1 >= total {
			_, err := tx.ExecContext(ctx,
				"UPDATE games SET status = ? WHERE id = ? AND status = ?",
				models.StatusFull, gameID, models.StatusOpen,
			)
			if err != nil {
				return fmt.Errorf("failed to mark game full: %w", err)
			}
		}
		return nil
	})
}

// RemoveParticipant deletes the participant row if present and reopens a
// FULL game that now has a free slot, in one transaction. It reports whether
// a row was deleted. Terminal games are left untouched with ErrGameTerminal.
func (r *GameRepository) RemoveParticipant(ctx context.Context, gameID, userID string) (bool, error) {
	var removed bool
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		status, total, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return ErrGameTerminal
		}

		result, err := tx.ExecContext(ctx,
			"DELETE FROM game_participants WHERE game_id = ? AND user_id = ?", gameID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete participant: %w", err)
		}
		if removed, err = affected(result); err != nil {
			return err
		}

		count, err := countParticipants(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if status == models.StatusFull && count < total {
			_, err := tx.ExecContext(ctx,
				"UPDATE games SET status = ? WHERE id = ? AND status = ?",
				models.StatusOpen, gameID, models.StatusFull,
			)
			if err != nil {
				return fmt.Errorf("failed to reopen game: %w", err)
			}
		}
		return nil
	})
	return removed, err
}

// UpdateDetails writes the editable fields of game. Status is re-derived from
// the participant count in the same transaction; lowering TotalPlayers below
// the current count fails with ErrCapacityExceeded.
func (r *GameRepository) UpdateDetails(ctx context.Context, game *models.Game) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		status, _, err := lockGame(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return ErrGameTerminal
		}

		count, err := countParticipants(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		if game.TotalPlayers < count {
			return ErrCapacityExceeded
		}
		game.Status = models.StatusForCount(count, game.TotalPlayers)

		query := `
			UPDATE games SET title = ?, description = ?, skill_level = ?, visibility = ?,
				start_time = ?, duration_minutes = ?, total_players = ?, status = ?, expires_at = ?
			WHERE id = ?
		`
		_, err = tx.ExecContext(ctx, query,
			game.Title, game.Description, game.SkillLevel, game.Visibility,
			game.StartTime.UTC(), game.DurationMinutes, game.TotalPlayers, game.Status,
			game.ExpiresAt.UTC(), game.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update game: %w", err)
		}
		return nil
	})
}

// CountParticipants returns the number of participants in a game
func (r *GameRepository) CountParticipants(ctx context.Context, gameID string) (int, error) {
	return countParticipants(ctx, r.db, gameID)
}

// IsParticipant reports whether userID has joined the game
func (r *GameRepository) IsParticipant(ctx context.Context, gameID, userID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM game_participants WHERE game_id = ? AND user_id = ?", gameID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return count > 0, nil
}

// ListParticipants returns participants in join order with their display names
func (r *GameRepository) ListParticipants(ctx context.Context, gameID string) ([]models.Participant, error) {
	query := `
		SELECT p.game_id, p.user_id, COALESCE(u.name, ''), p.joined_at
		FROM game_participants p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.game_id = ?
		ORDER BY p.joined_at, p.user_id
	`
	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.GameID, &p.UserID, &p.Name, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.JoinedAt = p.JoinedAt.UTC()
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// Delete removes a game with its participants and invitations
func (r *GameRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM game_participants WHERE game_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM game_invitations WHERE game_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete invitations: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM games WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete game: %w", err)
		}
		return checkAffectedRows(result, ErrGameNotFound)
	})
}

// ExpireDue moves every non-terminal game whose expiry is at or before now
// to EXPIRED and returns how many rows changed.
func (r *GameRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE games SET status = ? WHERE expires_at <= ? AND status NOT IN (?, ?)",
		models.StatusExpired, now.UTC(), models.StatusCancelled, models.StatusExpired,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire games: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}
