package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pickupmap/internal/cluster"
	"pickupmap/internal/models"
	"pickupmap/internal/service"
)

// GameHandler serves the game API
type GameHandler struct {
	games       *service.GameService
	clusterMode cluster.Mode
	logger      *slog.Logger
}

// NewGameHandler creates a game handler. clusterMode is used when a viewport
// request does not name one.
func NewGameHandler(games *service.GameService, clusterMode cluster.Mode, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, clusterMode: clusterMode, logger: logger}
}

// Routes mounts the game endpoints. Reads are public; mutations require a
// bearer token.
func (h *GameHandler) Routes(m *Middleware) chi.Router {
	r := chi.NewRouter()

	r.Get("/viewport", h.Viewport)
	r.Get("/search", h.Search)
	r.Get("/joined-ids", h.JoinedIDs)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(m.RequireAuth)
		r.Post("/", h.Create)
		r.Get("/mine", h.Mine)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/join", h.Join)
		r.Post("/{id}/leave", h.Leave)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/remove-participant", h.RemoveParticipant)
		r.Post("/{id}/invitations", h.Invite)
	})
	return r
}

type createGameRequest struct {
	LocationID      string                 `json:"locationId"`
	Location        *service.LocationInput `json:"location"`
	Sport           models.Sport           `json:"sport"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	SkillLevel      models.SkillLevel      `json:"skillLevel"`
	Visibility      models.Visibility      `json:"visibility"`
	StartTime       time.Time              `json:"startTime"`
	DurationMinutes int                    `json:"durationMinutes"`
	TotalPlayers    int                    `json:"totalPlayers"`
	InvitedUserIDs  []string               `json:"invitedUserIds"`
	TaggedUserIDs   []string               `json:"taggedUserIds"`
}

type updateGameRequest struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	SkillLevel      *models.SkillLevel `json:"skillLevel"`
	Visibility      *models.Visibility `json:"visibility"`
	StartTime       *time.Time         `json:"startTime"`
	DurationMinutes *int               `json:"durationMinutes"`
	TotalPlayers    *int               `json:"totalPlayers"`
}

type inviteRequest struct {
	UserIDs []string `json:"userIds"`
}

// unitResponse is one map marker: a lone game or a cluster.
type unitResponse struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	IsCluster bool     `json:"isCluster"`
	GameIDs   []string `json:"gameIds"`
}

// Create handles POST /api/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	game, err := h.games.Create(r.Context(), service.CreateGameInput{
		CreatorID:       UserIDFromContext(r.Context()),
		LocationID:      req.LocationID,
		Location:        req.Location,
		Sport:           req.Sport,
		Title:           req.Title,
		Description:     req.Description,
		SkillLevel:      req.SkillLevel,
		Visibility:      req.Visibility,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		TotalPlayers:    req.TotalPlayers,
		InvitedUserIDs:  req.InvitedUserIDs,
		TaggedUserIDs:   req.TaggedUserIDs,
	})
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{"game": game})
}

// Get handles GET /api/games/{id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.games.Get(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"game": detail})
}

// Update handles PATCH /api/games/{id}
func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateGameRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	game, err := h.games.Update(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context()), service.UpdateGameInput{
		Title:           req.Title,
		Description:     req.Description,
		SkillLevel:      req.SkillLevel,
		Visibility:      req.Visibility,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		TotalPlayers:    req.TotalPlayers,
	})
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"game": game})
}

// Delete handles DELETE /api/games/{id}
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Delete(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context())); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// Join handles POST /api/games/{id}/join
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Join(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context())); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// Leave handles POST /api/games/{id}/leave
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Leave(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context())); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// Cancel handles POST /api/games/{id}/cancel
func (h *GameHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Cancel(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context())); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// RemoveParticipant handles POST /api/games/{id}/remove-participant?userId=
func (h *GameHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	err := h.games.RemoveParticipant(r.Context(),
		chi.URLParam(r, "id"), UserIDFromContext(r.Context()), r.URL.Query().Get("userId"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// Invite handles POST /api/games/{id}/invitations
func (h *GameHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}
	if err := h.games.Invite(r.Context(), chi.URLParam(r, "id"), UserIDFromContext(r.Context()), req.UserIDs); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// Viewport handles GET /api/games/viewport. The cluster parameter selects
// greedy or connected clustering; "none" skips it.
func (h *GameHandler) Viewport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var edges [4]float64
	for i, name := range []string{"north", "south", "east", "west"} {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			badRequestResponse(w, fmt.Errorf("%s must be a number", name))
			return
		}
		edges[i] = v
	}
	bounds, err := models.NewBounds(edges[0], edges[1], edges[2], edges[3])
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	clusterParam := q.Get("cluster")
	mode := h.clusterMode
	if clusterParam != "" && clusterParam != "none" {
		if mode, err = cluster.ParseMode(clusterParam); err != nil {
			badRequestResponse(w, err)
			return
		}
	}

	games, err := h.games.QueryViewport(r.Context(), bounds, filter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	resp := envelope{"games": games}
	if clusterParam != "none" {
		resp["units"] = clusterListings(games, mode)
	}
	writeJSON(w, http.StatusOK, resp)
}

func clusterListings(games []models.GameListing, mode cluster.Mode) []unitResponse {
	points := make([]cluster.Point, len(games))
	for i, g := range games {
		points[i] = cluster.Point{ID: g.ID, Lat: g.Lat, Lng: g.Lng, StartTime: g.StartTime}
	}

	units := cluster.Cluster(points, cluster.Options{Mode: mode})
	out := make([]unitResponse, len(units))
	for i, u := range units {
		ids := make([]string, len(u.Points))
		for j, p := range u.Points {
			ids[j] = p.ID
		}
		out[i] = unitResponse{Lat: u.Lat, Lng: u.Lng, IsCluster: u.IsCluster(), GameIDs: ids}
	}
	return out
}

// Search handles GET /api/games/search?q=
func (h *GameHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	games, err := h.games.QuerySearch(r.Context(), r.URL.Query().Get("q"), filter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"games": games})
}

// Mine handles GET /api/games/mine?role=&sport=&date=
func (h *GameHandler) Mine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.MyGamesFilter{
		Role:  q.Get("role"),
		Sport: models.Sport(q.Get("sport")),
		Date:  q.Get("date"),
	}

	games, err := h.games.MyGames(r.Context(), UserIDFromContext(r.Context()), filter)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"games": games})
}

// JoinedIDs handles GET /api/games/joined-ids. Anonymous callers get an
// empty list.
func (h *GameHandler) JoinedIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.games.JoinedIDs(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"gameIds": ids})
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()

	window, err := models.ParseTimeWindow(q.Get("timeWindow"))
	if err != nil {
		return models.ListFilter{}, err
	}

	var needsPlayers bool
	if v := q.Get("needsPlayersOnly"); v != "" {
		if needsPlayers, err = strconv.ParseBool(v); err != nil {
			return models.ListFilter{}, errors.New("needsPlayersOnly must be true or false")
		}
	}

	return models.ListFilter{
		Sport:            models.Sport(q.Get("sport")),
		Window:           window,
		NeedsPlayersOnly: needsPlayers,
	}, nil
}
