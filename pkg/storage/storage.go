package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadResult contains the result of an upload operation
type UploadResult struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Storage is the object store e-tickets are written to
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	PresignDownload(ctx context.Context, key string, expiresIn time.Duration) (string, error)
	GetURL(key string) string
}

// TicketKey returns the object key for a booking's e-ticket.
// Format: tickets/{yyyy}/{mm}/{booking_id}/{crn}.pdf
func TicketKey(bookingID uuid.UUID, crn string, issuedAt time.Time) string {
	return fmt.Sprintf("tickets/%s/%s/%s.pdf",
		issuedAt.UTC().Format("2006/01"),
		bookingID.String(),
		strings.ToUpper(crn),
	)
}
