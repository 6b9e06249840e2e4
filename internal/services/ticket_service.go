package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// TicketService renders e-tickets for confirmed orders
type TicketService struct {
	orders OrderStore
	clock  Clock
}

// NewTicketService creates a new TicketService
func NewTicketService(orders OrderStore, clock Clock) *TicketService {
	return &TicketService{orders: orders, clock: clock}
}

// RenderETicket returns a one-page PDF e-ticket and its file name.
// Cancelled orders have no ticket and fail with OrderNotFound.
func (s *TicketService) RenderETicket(ctx context.Context, orderID int64) ([]byte, string, error) {
	detail, err := s.orders.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if detail == nil || !detail.IsActive {
		return nil, "", newError(KindOrderNotFound, "no active order with id %d", orderID)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("E-Ticket", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range ticketLines(detail) {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf("Valid for one passenger on one seat between the stations shown. Issued %s.",
		s.clock.Now().Format("2006-01-02 15:04")), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render e-ticket: %w", err)
	}

	filename := fmt.Sprintf("ETICKET_%d_%s.pdf", detail.ID, detail.DepartureDate.Format("20060102"))
	return buf.Bytes(), filename, nil
}

func ticketLines(d *models.OrderDetail) []string {
	seat := "-"
	if d.SeatNumber != nil && d.CarriageNumber != nil {
		seat = fmt.Sprintf("Carriage %d, seat %s", *d.CarriageNumber, *d.SeatNumber)
	}
	departs := d.DepartureDate.Format(models.DateLayout)
	if d.DepartureTime != nil {
		departs += " " + *d.DepartureTime
	}

	return []string{
		fmt.Sprintf("Order       : #%d", d.ID),
		fmt.Sprintf("Passenger   : %s", strings.TrimSpace(d.PassengerName)),
		fmt.Sprintf("ID number   : %s", maskPassengerID(d.PassengerID)),
		fmt.Sprintf("Vehicle     : %s", d.VehicleName),
		fmt.Sprintf("Route       : %s -> %s", d.FromStation, d.ToStation),
		fmt.Sprintf("Departs     : %s", departs),
		fmt.Sprintf("Class       : %s", d.SeatClass),
		fmt.Sprintf("Seat        : %s", seat),
		fmt.Sprintf("Fare        : %.2f", d.Price),
	}
}

// maskPassengerID keeps the last four characters of an identity number
func maskPassengerID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
