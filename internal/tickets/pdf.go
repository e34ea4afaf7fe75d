// Package tickets renders e-ticket PDFs for confirmed bookings and keeps them in object storage.
package tickets

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/i18n"
)

// Render draws a single-page A4 e-ticket for a confirmed booking.
func Render(data eventbus.BookingEventData, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+data.CRN, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, data.CRN)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	rows := []string{
		"Booking   : " + data.BookingID.String(),
		"Trip      : " + data.TripID.String(),
		"Departure : " + data.DepartureAt.In(loc).Format("Mon 02 Jan 2006 15:04 MST"),
		fmt.Sprintf("Seats     : %s (%d)", strings.Join(data.SeatIDs, ", "), len(data.SeatIDs)),
		"Paid      : " + i18n.FormatCents(data.TotalFareCents, data.Currency),
	}
	if data.RoundTripID != nil {
		rows = append(rows, "Linked to : "+data.RoundTripID.String())
	}
	for _, row := range rows {
		pdf.Cell(0, 7, row)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Show your boarding code to the driver. The code is sent separately and is not printed on this ticket.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket %s: %w", data.CRN, err)
	}
	return buf.Bytes(), nil
}
