package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Domenick1991/travelbooking/internal/service/booking"
	"github.com/Domenick1991/travelbooking/internal/service/listings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

func NewRouter(log *zap.Logger, bookings booking.BookingUseCase, listingSvc listings.ListingUseCase, checks map[string]HealthCheck) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(log))

	router.GET("/healthz", health(checks))

	v1 := router.Group("/api/v1")
	NewListingHandler(listingSvc).Register(v1.Group("/listings"))
	bookingHandler := NewBookingHandler(bookings)
	bookingHandler.Register(v1.Group("/bookings"))
	bookingHandler.RegisterUserRoutes(v1.Group("/users"))

	return router
}

func health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
