package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// OrderManager lists, cancels and restores orders
type OrderManager interface {
	Cancel(ctx context.Context, orderID int64) (*models.OrderAck, error)
	Restore(ctx context.Context, orderID int64) (*models.OrderAck, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, error)
	GetOrder(ctx context.Context, orderID int64) (*models.OrderDetail, error)
}

// TicketRenderer renders the e-ticket PDF of an active order
type TicketRenderer interface {
	RenderETicket(ctx context.Context, orderID int64) ([]byte, string, error)
}

// OrderHandler handles order lookup and lifecycle requests
type OrderHandler struct {
	orders  OrderManager
	tickets TicketRenderer
	logger  *logrus.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderManager, tickets TicketRenderer, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		tickets: tickets,
		logger:  logger,
	}
}

// ListActive handles GET /api/v1/orders
func (h *OrderHandler) ListActive(c *gin.Context) {
	h.list(c, true)
}

// ListCancelled handles GET /api/v1/orders/cancelled
func (h *OrderHandler) ListCancelled(c *gin.Context) {
	h.list(c, false)
}

func (h *OrderHandler) list(c *gin.Context, active bool) {
	filter := models.OrderFilter{
		PassengerName: c.Query("passenger_name"),
		PassengerID:   c.Query("passenger_id"),
		Active:        active,
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// Get handles GET /api/v1/orders/:orderId
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Cancel handles DELETE /api/v1/orders/:orderId
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	ack, err := h.orders.Cancel(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// Restore handles PUT /api/v1/orders/:orderId/restore
func (h *OrderHandler) Restore(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	ack, err := h.orders.Restore(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// Ticket handles GET /api/v1/orders/:orderId/ticket.pdf
func (h *OrderHandler) Ticket(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	pdf, filename, err := h.tickets.RenderETicket(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// parseID reads a positive integer path parameter, writing a 400 when it is not one
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}
