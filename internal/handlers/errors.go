package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/services"
)

// statusByKind maps booking failure kinds to HTTP status codes
var statusByKind = map[services.ErrorKind]int{
	services.KindStationNotOnRoute:     http.StatusBadRequest,
	services.KindInvalidSegment:        http.StatusBadRequest,
	services.KindRouteInvalid:          http.StatusBadRequest,
	services.KindRunNotFound:           http.StatusNotFound,
	services.KindVehicleNotFound:       http.StatusNotFound,
	services.KindOrderNotFound:         http.StatusNotFound,
	services.KindSoldOut:               http.StatusConflict,
	services.KindAllocationFailed:      http.StatusConflict,
	services.KindSeatNoLongerAvailable: http.StatusConflict,
	services.KindInvalidTransition:     http.StatusConflict,
	services.KindFareNotFound:          http.StatusUnprocessableEntity,
	services.KindIntegrityViolation:    http.StatusInternalServerError,
}

// respondError writes {"error", "code"} for err. Errors without a booking
// kind are logged and reported as INTERNAL_ERROR without their detail.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var bookingErr *services.BookingError
	if errors.As(err, &bookingErr) {
		status, ok := statusByKind[bookingErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			c.Error(err)
		}
		c.JSON(status, gin.H{
			"error": bookingErr.Error(),
			"code":  string(bookingErr.Kind),
		})
		return
	}

	logger.WithError(err).Error("Request failed with internal error")
	c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  "INTERNAL_ERROR",
	})
}

// badRequest writes a 400 for malformed input
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  "INVALID_REQUEST",
	})
}
