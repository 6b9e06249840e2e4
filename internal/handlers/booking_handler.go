package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/middleware"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// Booker books one seat for one segment
type Booker interface {
	Book(ctx context.Context, req *models.BookRequest) (*models.BookingConfirmation, error)
}

// BookingHandler handles booking requests
type BookingHandler struct {
	booker Booker
	logger *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(booker Booker, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		booker: booker,
		logger: logger,
	}
}

// Book handles POST /api/v1/bookings
func (h *BookingHandler) Book(c *gin.Context) {
	var req models.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	confirmation, err := h.booker.Book(c.Request.Context(), &req)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id":   middleware.GetRequestID(c),
			"run_id":       req.RunID,
			"vehicle_id":   req.VehicleID,
			"from_station": req.FromStation,
			"to_station":   req.ToStation,
			"seat_class":   req.SeatClass,
			"error":        err.Error(),
		}).Warn("Booking rejected")
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, confirmation)
}
