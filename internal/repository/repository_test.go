package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pickupmap/internal/database"
	"pickupmap/internal/models"
)

var testNow = time.Date(2026, 5, 6, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func createTestLocation(t *testing.T, db *database.DB, label string, lat, lng float64) *models.Location {
	t.Helper()
	loc, err := NewLocationRepository(db).Create(context.Background(), label, lat, lng)
	if err != nil {
		t.Fatalf("Failed to create location %s: %v", label, err)
	}
	return loc
}

func newTestGame(creatorID, locationID string, total int, start time.Time) *models.Game {
	return &models.Game{
		CreatorID:       creatorID,
		LocationID:      locationID,
		Sport:           models.SportBasketball,
		Title:           "Evening run",
		SkillLevel:      models.SkillCasual,
		Visibility:      models.VisibilityPublic,
		StartTime:       start,
		DurationMinutes: models.DefaultDurationMinutes,
		TotalPlayers:    total,
		ExpiresAt:       models.ExpiresAtFor(start),
		CreatedAt:       testNow,
	}
}

func createTestGame(t *testing.T, repo *GameRepository, game *models.Game, invited, tagged []string) *models.Game {
	t.Helper()
	if err := repo.Create(context.Background(), game, invited, tagged); err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	return game
}

func TestGameCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	invites := NewInvitationRepository(db)
	loc := createTestLocation(t, db, "Dolores Park", 37.7596, -122.4269)

	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(time.Hour)), []string{"bob"}, []string{"carol"})

	got, err := repo.GetByID(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "Evening run" || got.Status != models.StatusOpen || got.TotalPlayers != 4 {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.StartTime.Equal(game.StartTime) || !got.ExpiresAt.Equal(game.StartTime.Add(30*time.Minute)) {
		t.Errorf("times = %v / %v, want start %v", got.StartTime, got.ExpiresAt, game.StartTime)
	}

	count, err := repo.CountParticipants(ctx, game.ID)
	if err != nil || count != 2 {
		t.Errorf("CountParticipants() = %d, %v, want 2", count, err)
	}

	for _, tt := range []struct {
		user        string
		participant bool
		invited     bool
	}{
		{"alice", true, false},
		{"bob", true, true},
		{"carol", false, true},
		{"dave", false, false},
	} {
		isParticipant, _ := repo.IsParticipant(ctx, game.ID, tt.user)
		hasInvite, _ := invites.HasInvite(ctx, game.ID, tt.user)
		if isParticipant != tt.participant || hasInvite != tt.invited {
			t.Errorf("%s: participant=%v invited=%v, want %v %v", tt.user, isParticipant, hasInvite, tt.participant, tt.invited)
		}
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrGameNotFound", err)
	}
}

func TestGameCreateCapacity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)

	full := createTestGame(t, repo, newTestGame("alice", loc.ID, 2, testNow.Add(time.Hour)), []string{"bob"}, nil)
	if full.Status != models.StatusFull {
		t.Errorf("Status = %v, want FULL when invitees fill the game", full.Status)
	}

	over := newTestGame("alice", loc.ID, 2, testNow.Add(time.Hour))
	if err := repo.Create(ctx, over, []string{"bob", "carol"}, nil); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Create() error = %v, want ErrCapacityExceeded", err)
	}
}

func TestAddParticipant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 2, testNow.Add(time.Hour)), nil, nil)

	if err := repo.AddParticipant(ctx, game.ID, "alice", testNow); !errors.Is(err, ErrAlreadyJoined) {
		t.Errorf("AddParticipant(creator) error = %v, want ErrAlreadyJoined", err)
	}

	if err := repo.AddParticipant(ctx, game.ID, "bob", testNow); err != nil {
		t.Fatalf("AddParticipant(bob) error = %v", err)
	}
	got, _ := repo.GetByID(ctx, game.ID)
	if got.Status != models.StatusFull {
		t.Errorf("Status after last slot = %v, want FULL", got.Status)
	}

	if err := repo.AddParticipant(ctx, game.ID, "carol", testNow); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("AddParticipant(full game) error = %v, want ErrCapacityExceeded", err)
	}

	if err := repo.AddParticipant(ctx, "missing", "carol", testNow); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("AddParticipant(missing) error = %v, want ErrGameNotFound", err)
	}
}

func TestAddParticipantRejectsOverCapacityWhileOpen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 2, testNow.Add(time.Hour)), []string{"bob"}, nil)

	// Force an inconsistent OPEN status; the count check must still hold.
	if ok, err := repo.UpdateStatus(ctx, game.ID, models.StatusFull, models.StatusOpen); err != nil || !ok {
		t.Fatalf("UpdateStatus() = %v, %v", ok, err)
	}
	if err := repo.AddParticipant(ctx, game.ID, "carol", testNow); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("AddParticipant() error = %v, want ErrCapacityExceeded", err)
	}
}

func TestAddParticipantConcurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)

	const total = 5
	const racers = 12
	game := createTestGame(t, repo, newTestGame("host", loc.ID, total, testNow.Add(time.Hour)), nil, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.AddParticipant(ctx, game.ID, "racer-"+string(rune('a'+i)), testNow)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("AddParticipant() unexpected error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != total-1 {
		t.Errorf("successes = %d, want %d", successes, total-1)
	}
	if rejected != racers-(total-1) {
		t.Errorf("rejected = %d, want %d", rejected, racers-(total-1))
	}

	count, _ := repo.CountParticipants(ctx, game.ID)
	if count != total {
		t.Errorf("final count = %d, want %d", count, total)
	}
	got, _ := repo.GetByID(ctx, game.ID)
	if got.Status != models.StatusFull {
		t.Errorf("final status = %v, want FULL", got.Status)
	}
}

func TestRemoveParticipant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 2, testNow.Add(time.Hour)), []string{"bob"}, nil)

	removed, err := repo.RemoveParticipant(ctx, game.ID, "bob")
	if err != nil || !removed {
		t.Fatalf("RemoveParticipant() = %v, %v, want true", removed, err)
	}
	got, _ := repo.GetByID(ctx, game.ID)
	if got.Status != models.StatusOpen {
		t.Errorf("Status after leave = %v, want OPEN", got.Status)
	}

	removed, err = repo.RemoveParticipant(ctx, game.ID, "bob")
	if err != nil || removed {
		t.Errorf("second RemoveParticipant() = %v, %v, want false, nil", removed, err)
	}

	if ok, _ := repo.Cancel(ctx, game.ID); !ok {
		t.Fatal("Cancel() = false")
	}
	if _, err := repo.RemoveParticipant(ctx, game.ID, "alice"); !errors.Is(err, ErrGameTerminal) {
		t.Errorf("RemoveParticipant(cancelled) error = %v, want ErrGameTerminal", err)
	}

	if _, err := repo.RemoveParticipant(ctx, "missing", "bob"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("RemoveParticipant(missing) error = %v, want ErrGameNotFound", err)
	}
}

func TestCancelIsConditional(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(-time.Hour)), nil, nil)

	if n, err := repo.ExpireDue(ctx, testNow); err != nil || n != 1 {
		t.Fatalf("ExpireDue() = %d, %v, want 1", n, err)
	}
	if ok, err := repo.Cancel(ctx, game.ID); err != nil || ok {
		t.Errorf("Cancel(expired) = %v, %v, want false", ok, err)
	}
	got, _ := repo.GetByID(ctx, game.ID)
	if got.Status != models.StatusExpired {
		t.Errorf("Status = %v, want EXPIRED", got.Status)
	}
}

func TestExpireDue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)

	// ExpiresAt is start + 30m, so start 31m ago means expired 1m ago.
	due := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(-31*time.Minute)), nil, nil)
	full := createTestGame(t, repo, newTestGame("alice", loc.ID, 2, testNow.Add(-31*time.Minute)), []string{"bob"}, nil)
	exact := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(-30*time.Minute)), nil, nil)
	cancelled := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(-31*time.Minute)), nil, nil)
	future := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(time.Hour)), nil, nil)
	if _, err := repo.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	n, err := repo.ExpireDue(ctx, testNow)
	if err != nil {
		t.Fatalf("ExpireDue() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ExpireDue() = %d, want 3", n)
	}

	n, err = repo.ExpireDue(ctx, testNow)
	if err != nil || n != 0 {
		t.Errorf("second ExpireDue() = %d, %v, want 0", n, err)
	}

	want := map[string]models.GameStatus{
		due.ID:       models.StatusExpired,
		full.ID:      models.StatusExpired,
		exact.ID:     models.StatusExpired,
		cancelled.ID: models.StatusCancelled,
		future.ID:    models.StatusOpen,
	}
	for id, status := range want {
		got, _ := repo.GetByID(ctx, id)
		if got.Status != status {
			t.Errorf("game %s status = %v, want %v", id, got.Status, status)
		}
	}

	if err := repo.AddParticipant(ctx, due.ID, "late", testNow); !errors.Is(err, ErrGameNotOpen) {
		t.Errorf("AddParticipant(expired) error = %v, want ErrGameNotOpen", err)
	}
}

func TestListByBounds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)

	inside := createTestLocation(t, db, "Inside", 37.76, -122.43)
	outside := createTestLocation(t, db, "Outside", 40.71, -74.00)

	later := createTestGame(t, repo, newTestGame("alice", inside.ID, 4, testNow.Add(90*time.Minute)), nil, nil)
	sooner := createTestGame(t, repo, newTestGame("alice", inside.ID, 2, testNow.Add(30*time.Minute)), []string{"bob"}, nil)

	soccer := newTestGame("alice", inside.ID, 4, testNow.Add(5*time.Hour))
	soccer.Sport = models.SportSoccer
	createTestGame(t, repo, soccer, nil, nil)

	createTestGame(t, repo, newTestGame("alice", outside.ID, 4, testNow.Add(time.Hour)), nil, nil)
	cancelled := createTestGame(t, repo, newTestGame("alice", inside.ID, 4, testNow.Add(time.Hour)), nil, nil)
	repo.Cancel(ctx, cancelled.ID)
	// Still OPEN in storage but past its expiry.
	createTestGame(t, repo, newTestGame("alice", inside.ID, 4, testNow.Add(-40*time.Minute)), nil, nil)

	bounds, err := models.NewBounds(37.70, 37.80, -122.40, -122.50)
	if err != nil {
		t.Fatalf("NewBounds() error = %v", err)
	}

	tests := []struct {
		name   string
		filter models.ListFilter
		want   []string
	}{
		{"all live games ordered by start", models.ListFilter{}, []string{sooner.ID, later.ID, soccer.ID}},
		{"sport filter", models.ListFilter{Sport: models.SportSoccer}, []string{soccer.ID}},
		{"needs players", models.ListFilter{NeedsPlayersOnly: true}, []string{later.ID, soccer.ID}},
		{"two hour window", models.ListFilter{Window: models.WindowTwoHour}, []string{sooner.ID, later.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListByBounds(ctx, bounds, tt.filter, testNow)
			if err != nil {
				t.Fatalf("ListByBounds() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListByBounds() returned %d games, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}

	got, _ := repo.ListByBounds(ctx, bounds, models.ListFilter{}, testNow)
	if got[0].JoinedCount != 2 || got[0].LocationLabel != "Inside" || got[0].Lat != 37.76 {
		t.Errorf("listing = %+v, want joinedCount 2 at Inside", got[0])
	}

	empty, err := models.NewBounds(0, 1, 0, 1)
	if err != nil {
		t.Fatalf("NewBounds() error = %v", err)
	}
	none, err := repo.ListByBounds(ctx, empty, models.ListFilter{}, testNow)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("ListByBounds(empty area) = %v, %v, want empty slice", none, err)
	}
}

func TestListBySearch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	users := NewUserRepository(db)

	if err := users.Upsert(ctx, "alice", "Alice Liddell", "alice@example.com"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	park := createTestLocation(t, db, "Golden Gate Park", 37.7694, -122.4862)
	gym := createTestLocation(t, db, "100% Fitness Gym", 37.78, -122.41)

	inPark := createTestGame(t, repo, newTestGame("alice", park.ID, 4, testNow.Add(time.Hour)), nil, nil)
	inGym := createTestGame(t, repo, newTestGame("someone", gym.ID, 4, testNow.Add(2*time.Hour)), nil, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"location label case-insensitive", "golden gate", []string{inPark.ID}},
		{"creator name", "LIDDELL", []string{inPark.ID}},
		{"creator email", "alice@example", []string{inPark.ID}},
		{"percent is literal", "100%", []string{inGym.ID}},
		{"underscore is literal", "Golden_Gate", nil},
		{"blank", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListBySearch(ctx, tt.query, models.ListFilter{}, testNow)
			if err != nil {
				t.Fatalf("ListBySearch() error = %v", err)
			}
			if got == nil {
				t.Fatal("ListBySearch() returned nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListBySearch(%q) returned %d games, want %d", tt.query, len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestListForUserAndJoinedIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)

	hosted := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(2*time.Hour)), nil, nil)
	joined := createTestGame(t, repo, newTestGame("bob", loc.ID, 4, testNow.Add(time.Hour)), nil, nil)
	createTestGame(t, repo, newTestGame("bob", loc.ID, 4, testNow.Add(3*time.Hour)), nil, nil)
	if err := repo.AddParticipant(ctx, joined.ID, "alice", testNow); err != nil {
		t.Fatalf("AddParticipant() error = %v", err)
	}

	games, err := repo.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("ListForUser() returned %d games, want 2", len(games))
	}
	if games[0].ID != joined.ID || games[0].Role != "participant" {
		t.Errorf("games[0] = %s/%s, want %s/participant", games[0].ID, games[0].Role, joined.ID)
	}
	if games[1].ID != hosted.ID || games[1].Role != "hosting" {
		t.Errorf("games[1] = %s/%s, want %s/hosting", games[1].ID, games[1].Role, hosted.ID)
	}

	ids, err := repo.JoinedGameIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("JoinedGameIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("JoinedGameIDs() = %v, want 2 ids", ids)
	}

	none, err := repo.JoinedGameIDs(ctx, "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("JoinedGameIDs(nobody) = %v, %v, want empty slice", none, err)
	}
}

func TestUpdateDetails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(time.Hour)), []string{"bob"}, nil)

	game.TotalPlayers = 2
	game.Title = "Smaller run"
	if err := repo.UpdateDetails(ctx, game); err != nil {
		t.Fatalf("UpdateDetails() error = %v", err)
	}
	got, _ := repo.GetByID(ctx, game.ID)
	if got.Status != models.StatusFull || got.Title != "Smaller run" {
		t.Errorf("after shrink: status %v title %q, want FULL / Smaller run", got.Status, got.Title)
	}

	game.TotalPlayers = 1
	if err := repo.UpdateDetails(ctx, game); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("UpdateDetails(below count) error = %v, want ErrCapacityExceeded", err)
	}

	game.TotalPlayers = 6
	if err := repo.UpdateDetails(ctx, game); err != nil {
		t.Fatalf("UpdateDetails() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, game.ID)
	if got.Status != models.StatusOpen {
		t.Errorf("after grow: status %v, want OPEN", got.Status)
	}
}

func TestDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	invites := NewInvitationRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(time.Hour)), []string{"bob"}, []string{"carol"})

	if err := repo.Delete(ctx, game.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, game.ID); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrGameNotFound", err)
	}
	if n, _ := repo.CountParticipants(ctx, game.ID); n != 0 {
		t.Errorf("participants after delete = %d, want 0", n)
	}
	if ok, _ := invites.HasInvite(ctx, game.ID, "carol"); ok {
		t.Error("invitation survived delete")
	}
	if err := repo.Delete(ctx, game.ID); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("second Delete() error = %v, want ErrGameNotFound", err)
	}
}

func TestInvitationAdd(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewGameRepository(db)
	invites := NewInvitationRepository(db)
	loc := createTestLocation(t, db, "Court", 0, 0)
	game := createTestGame(t, repo, newTestGame("alice", loc.ID, 4, testNow.Add(time.Hour)), nil, []string{"bob"})

	if err := invites.Add(ctx, game.ID, []string{"bob", "carol", "carol"}, testNow); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	list, err := invites.ListForGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("ListForGame() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListForGame() returned %d invitations, want 2", len(list))
	}
}

func TestFriendRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	friends := NewFriendRepository(db)

	if err := friends.SaveRequest(ctx, "alice", "bob", models.FriendPending); err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	if ok, _ := friends.IsAcceptedFriend(ctx, "alice", "bob"); ok {
		t.Error("pending request counted as friendship")
	}

	if err := friends.SaveRequest(ctx, "alice", "bob", models.FriendAccepted); err != nil {
		t.Fatalf("SaveRequest() error = %v", err)
	}
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := friends.IsAcceptedFriend(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Errorf("IsAcceptedFriend(%s, %s) = %v, %v, want true", pair[0], pair[1], ok, err)
		}
	}
	if ok, _ := friends.IsAcceptedFriend(ctx, "alice", "carol"); ok {
		t.Error("IsAcceptedFriend(alice, carol) = true, want false")
	}
}

func TestUserUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	if err := users.Upsert(ctx, "u1", "Ada", "ada@example.com"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := users.Upsert(ctx, "u1", "", "ada@lovelace.dev"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	user, err := users.GetByID(ctx, "u1")
	if err != nil || user == nil {
		t.Fatalf("GetByID() = %v, %v", user, err)
	}
	if user.Name != "Ada" || user.Email != "ada@lovelace.dev" {
		t.Errorf("user = %+v, want name kept and email updated", user)
	}

	missing, err := users.GetByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("GetByID(nobody) = %v, %v, want nil, nil", missing, err)
	}
}

func TestNotificationRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	notifications := NewNotificationRepository(db)

	first := models.Notification{UserID: "alice", Type: models.NotificationTaggedInPost, Data: map[string]any{"postId": "g1"}, CreatedAt: testNow}
	second := models.Notification{UserID: "alice", Type: models.NotificationJoinedYourPost, Data: map[string]any{"postId": "g2"}, CreatedAt: testNow.Add(time.Minute)}
	for _, n := range []*models.Notification{&first, &second} {
		if err := notifications.Create(ctx, n); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := notifications.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[0].Data["postId"] != "g2" {
		t.Errorf("ListForUser() = %+v, want newest first", list)
	}

	if err := notifications.Dismiss(ctx, first.ID, "mallory"); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if list, _ = notifications.ListForUser(ctx, "alice"); len(list) != 2 {
		t.Error("Dismiss() by another user removed a notification")
	}

	if err := notifications.Dismiss(ctx, first.ID, "alice"); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if list, _ = notifications.ListForUser(ctx, "alice"); len(list) != 1 {
		t.Errorf("after Dismiss() %d notifications, want 1", len(list))
	}

	if err := notifications.DismissAll(ctx, "alice"); err != nil {
		t.Fatalf("DismissAll() error = %v", err)
	}
	if list, _ = notifications.ListForUser(ctx, "alice"); len(list) != 0 {
		t.Errorf("after DismissAll() %d notifications, want 0", len(list))
	}
}
