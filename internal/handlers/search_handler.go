package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// Searcher answers availability and timetable queries
type Searcher interface {
	SearchAvailability(ctx context.Context, runID int64, seatClass, fromStation, toStation string) (*models.AvailabilityQuote, error)
	SearchBookableRuns(ctx context.Context, req *models.RunSearchRequest) ([]models.BookableRun, error)
	GetVehicleStops(ctx context.Context, vehicleID int64) ([]models.StopFare, error)
}

// SearchHandler handles HTTP requests for availability and run search
type SearchHandler struct {
	service Searcher
	logger  *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service Searcher, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// Availability handles GET /api/v1/runs/:runId/availability?seat_class=&from=&to=
func (h *SearchHandler) Availability(c *gin.Context) {
	runID, ok := parseID(c, "runId")
	if !ok {
		return
	}

	seatClass, from, to := c.Query("seat_class"), c.Query("from"), c.Query("to")
	if seatClass == "" || from == "" || to == "" {
		badRequest(c, "seat_class, from and to are required")
		return
	}

	quote, err := h.service.SearchAvailability(c.Request.Context(), runID, seatClass, from, to)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// SearchRuns handles POST /api/v1/runs/search
func (h *SearchHandler) SearchRuns(c *gin.Context) {
	var req models.RunSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	runs, err := h.service.SearchBookableRuns(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"from":    req.FromStation,
		"to":      req.ToStation,
		"date":    req.Date,
		"results": len(runs),
	}).Debug("Run search completed")

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// VehicleStops handles GET /api/v1/vehicles/:vehicleId/stops
func (h *SearchHandler) VehicleStops(c *gin.Context) {
	vehicleID, ok := parseID(c, "vehicleId")
	if !ok {
		return
	}

	stops, err := h.service.GetVehicleStops(c.Request.Context(), vehicleID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vehicle_id": vehicleID,
		"stops":      stops,
	})
}
