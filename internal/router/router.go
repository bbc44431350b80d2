package router

import (
	"hothour-sync/internal/handler"
	"hothour-sync/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating the status-API router.
type Config struct {
	Handler        *handler.Handler
	AuctionHandler *handler.AuctionHandler
	ChannelHandler *handler.ChannelHandler
	BookingHandler *handler.BookingHandler
}

// New creates and configures the local status-API router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuctionHandler != nil {
			r.Route("/auctions", func(r chi.Router) {
				r.Get("/", cfg.AuctionHandler.List)
				r.Post("/refresh", cfg.AuctionHandler.Refresh)
				r.Get("/{id}", cfg.AuctionHandler.Get)
				r.Get("/{id}/history", cfg.AuctionHandler.History)
			})
		}

		if cfg.ChannelHandler != nil {
			r.Route("/channel", func(r chi.Router) {
				r.Get("/", cfg.ChannelHandler.State)
				r.Post("/reconnect", cfg.ChannelHandler.Reconnect)
				r.Post("/watch/{id}", cfg.ChannelHandler.Watch)
				r.Post("/unwatch/{id}", cfg.ChannelHandler.Unwatch)
			})
		}

		if cfg.BookingHandler != nil {
			r.Post("/book/{id}", cfg.BookingHandler.Book)
		}
	})

	return r
}
