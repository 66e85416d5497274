package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/courtsidehq/league-engine/handlers"
	"github.com/courtsidehq/league-engine/middleware"
)

// SetupRoutes mounts the full API surface: public reads, authenticated
// player routes, and the admin group behind the admin role.
func SetupRoutes(
	router *chi.Mux,
	ratingHandler *handlers.RatingHandler,
	bracketHandler *handlers.BracketHandler,
	seasonHandler *handlers.SeasonHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	// Public reads
	router.Group(func(r chi.Router) {
		r.Get("/seasons/{seasonID}/players/{userID}/rating", ratingHandler.GetHandler)
		r.Get("/seasons/{seasonID}/players/{userID}/rating/history", ratingHandler.HistoryHandler)
		r.Get("/seasons/{seasonID}/parameters", seasonHandler.GetParametersHandler)
		r.Get("/seasons/{seasonID}/parameters/versions", seasonHandler.ListParameterVersionsHandler)
		r.Get("/seasons/{seasonID}/lock", seasonHandler.LockStatusHandler)
		r.Get("/brackets/{bracketID}", bracketHandler.GetHandler)
	})

	// Authenticated player routes
	router.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/ratings", ratingHandler.EnsureInitialHandler)
		r.Post("/matches/{matchID}/rating", ratingHandler.ApplyMatchHandler)
	})

	// Admin routes
	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(adminOnly)

		r.Post("/ratings/adjust", ratingHandler.AdjustHandler)

		r.Post("/seasons/{seasonID}/lock", seasonHandler.LockHandler)
		r.Delete("/seasons/{seasonID}/lock", seasonHandler.UnlockHandler)
		r.Put("/seasons/{seasonID}/parameters", seasonHandler.SetParametersHandler)
		r.Post("/seasons/{seasonID}/recalculate", seasonHandler.RecalculateHandler)
		r.Post("/seasons/{seasonID}/recalculate/preview", seasonHandler.PreviewRecalculationHandler)
		r.Get("/seasons/{seasonID}/export", seasonHandler.ExportHandler)
		r.Post("/seasons/{seasonID}/export", seasonHandler.ExportUploadHandler)

		r.Post("/brackets", bracketHandler.CreateHandler)
		r.Post("/brackets/{bracketID}/seed", bracketHandler.SeedHandler)
		r.Post("/brackets/{bracketID}/publish", bracketHandler.PublishHandler)
		r.Post("/brackets/matches/{bracketMatchID}/result", bracketHandler.RecordResultHandler)
	})
}
