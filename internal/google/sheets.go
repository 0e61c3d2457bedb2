package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"advocat/internal/config"
	"advocat/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	bookingsRange = "Bookings!A:A"
	contactsRange = "Contacts!A:A"
)

var (
	bookingHeaders = []interface{}{"ID", "Firstname", "Lastname", "Email", "Phone", "Datetime", "Synced At"}
	contactHeaders = []interface{}{"ID", "Firstname", "Lastname", "Email", "Message", "Synced At"}
)

// SheetsService appends created bookings and contacts to spreadsheets.
type SheetsService struct {
	service         *sheets.Service
	bookingsSheetID string
	contactsSheetID string
	now             func() time.Time
}

func NewSheetsService(ctx context.Context, cfg config.GoogleConfig) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsService(srv, cfg), nil
}

func newSheetsService(srv *sheets.Service, cfg config.GoogleConfig) *SheetsService {
	contacts := cfg.ContactsSpreadSheetID
	if contacts == "" {
		contacts = cfg.BookingSpreadSheetID
	}
	return &SheetsService{
		service:         srv,
		bookingsSheetID: cfg.BookingSpreadSheetID,
		contactsSheetID: contacts,
		now:             time.Now,
	}
}

// TestConnection reads the header cell of the bookings sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.bookingsSheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email of a credentials file, the
// address the spreadsheets must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// EnsureHeaders writes the header rows when a sheet is still empty.
func (s *SheetsService) EnsureHeaders(ctx context.Context) error {
	if err := s.ensureHeader(ctx, s.bookingsSheetID, "Bookings!A1:G1", bookingHeaders); err != nil {
		return err
	}
	return s.ensureHeader(ctx, s.contactsSheetID, "Contacts!A1:F1", contactHeaders)
}

func (s *SheetsService) ensureHeader(ctx context.Context, sheetID, rng string, headers []interface{}) error {
	resp, err := s.service.Spreadsheets.Values.Get(sheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = s.service.Spreadsheets.Values.Update(sheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{headers},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

func (s *SheetsService) AppendBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return fmt.Errorf("booking is nil")
	}
	return s.append(ctx, s.bookingsSheetID, bookingsRange, bookingRowValues(booking, s.now()))
}

func (s *SheetsService) AppendContact(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is nil")
	}
	return s.append(ctx, s.contactsSheetID, contactsRange, contactRowValues(contact, s.now()))
}

func (s *SheetsService) append(ctx context.Context, sheetID, rng string, row []interface{}) error {
	_, err := s.service.Spreadsheets.Values.Append(sheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	return nil
}

func bookingRowValues(b *models.Booking, syncedAt time.Time) []interface{} {
	return []interface{}{
		b.ID,
		b.Firstname,
		b.Lastname,
		b.Email,
		b.Phone,
		b.Datetime,
		syncedAt.Format("2006-01-02 15:04:05"),
	}
}

func contactRowValues(c *models.Contact, syncedAt time.Time) []interface{} {
	return []interface{}{
		c.ID,
		c.Firstname,
		c.Lastname,
		c.Email,
		c.Message,
		syncedAt.Format("2006-01-02 15:04:05"),
	}
}
