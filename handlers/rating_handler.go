package handlers

import (
	"errors"
	"net/http"

	"github.com/courtsidehq/league-engine/middleware"
	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/services"
)

type RatingHandler struct {
	ratingService services.RatingService
}

func NewRatingHandler(rs services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: rs}
}

// EnsureInitialHandler handles POST /ratings
func (h *RatingHandler) EnsureInitialHandler(w http.ResponseWriter, r *http.Request) {
	var input services.EnsureInitialRatingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rating, err := h.ratingService.EnsureInitialRating(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"rating": rating}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetHandler handles GET /seasons/{seasonID}/players/{userID}/rating
func (h *RatingHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, userID, gameType, err := ratingKeyFromRequest(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rating, err := h.ratingService.GetRating(r.Context(), userID, seasonID, gameType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rating": rating}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// HistoryHandler handles GET /seasons/{seasonID}/players/{userID}/rating/history
func (h *RatingHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, userID, gameType, err := ratingKeyFromRequest(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	history, err := h.ratingService.GetHistory(r.Context(), userID, seasonID, gameType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ApplyMatchHandler handles POST /matches/{matchID}/rating
func (h *RatingHandler) ApplyMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	changes, err := h.ratingService.ApplyMatchResult(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"changes": changes}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdjustHandler handles POST /admin/ratings/adjust
func (h *RatingHandler) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.AdjustRatingInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.AdminID = adminID

	rating, err := h.ratingService.AdjustRating(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rating": rating}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func ratingKeyFromRequest(r *http.Request) (seasonID, userID int, gameType models.GameType, err error) {
	seasonID, err = getIDFromURL(r, "seasonID")
	if err != nil {
		return 0, 0, "", err
	}
	userID, err = getIDFromURL(r, "userID")
	if err != nil {
		return 0, 0, "", err
	}
	gameType = models.GameType(r.URL.Query().Get("game_type"))
	if gameType == "" {
		gameType = models.GameTypeSingles
	}
	if !gameType.Valid() {
		return 0, 0, "", errors.New("invalid game_type query parameter")
	}
	return seasonID, userID, gameType, nil
}
