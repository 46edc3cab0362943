package gsheet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ValueInputUserEntered lets the spreadsheet parse written text (dates, formulas).
const ValueInputUserEntered = "USER_ENTERED"

var ErrCredentialsMissing = errors.New("missing Google service account credentials")

type Credentials struct {
	CredentialsPath string
	ClientEmail     string
	PrivateKey      string
}

// CellUpdate is a single value destined for one A1 range.
type CellUpdate struct {
	Range string `json:"range"`
	Value string `json:"value"`
}

type Client struct {
	service     *sheets.Service
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewClient builds a Sheets client from a credentials file or from a service
// account email/private key pair, in that order of preference.
func NewClient(ctx context.Context, creds Credentials, maxRetries int) (*Client, error) {
	var opt option.ClientOption
	switch {
	case creds.CredentialsPath != "":
		opt = option.WithCredentialsFile(creds.CredentialsPath)
	case creds.ClientEmail != "" && creds.PrivateKey != "":
		conf := &jwt.Config{
			Email:      creds.ClientEmail,
			PrivateKey: []byte(creds.PrivateKey),
			Scopes:     []string{sheets.SpreadsheetsScope},
			TokenURL:   google.JWTTokenURL,
		}
		opt = option.WithHTTPClient(conf.Client(ctx))
	default:
		return nil, ErrCredentialsMissing
	}

	c, err := New(ctx, opt)
	if err != nil {
		return nil, err
	}
	c.maxRetries = maxRetries
	return c, nil
}

func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{
		service:     srv,
		maxRetries:  5,
		baseBackoff: time.Second,
		maxBackoff:  30 * time.Second,
	}, nil
}

func (c *Client) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	var ss *sheets.Spreadsheet
	err := c.withRetry(ctx, "metadata", func() error {
		var err error
		ss, err = c.service.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties.title").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read spreadsheet metadata: %w", err)
	}

	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

// ReadRange returns the formatted cell values of rangeSpec. Trailing empty
// cells are omitted by the API, so rows may have different lengths.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rangeSpec string) ([][]string, error) {
	var resp *sheets.ValueRange
	err := c.withRetry(ctx, "read "+rangeSpec, func() error {
		var err error
		resp, err = c.service.Spreadsheets.Values.Get(spreadsheetID, rangeSpec).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rangeSpec, err)
	}
	return toStrings(resp.Values), nil
}

// BatchWrite sends all updates in one values.batchUpdate call and returns the
// number of cells the API reports as updated.
func (c *Client) BatchWrite(ctx context.Context, spreadsheetID string, updates []CellUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  u.Range,
			Values: [][]interface{}{{u.Value}},
		})
	}

	var resp *sheets.BatchUpdateValuesResponse
	err := c.withRetry(ctx, "batch write", func() error {
		var err error
		resp, err = c.service.Spreadsheets.Values.BatchUpdate(spreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: ValueInputUserEntered,
			Data:             data,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write %d cells: %w", len(updates), err)
	}
	return resp.TotalUpdatedCells, nil
}

func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = call()
		if err == nil || !isRateLimited(err) || attempt >= c.maxRetries {
			return err
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * c.baseBackoff
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
		logger.Info.Printf("Rate limited by Google Sheets API (%s), retrying in %v...", op, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func isRateLimited(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	if gErr.Code == 429 {
		return true
	}
	if gErr.Code != 403 {
		return false
	}
	for _, item := range gErr.Errors {
		if strings.Contains(strings.ToLower(item.Reason), "ratelimitexceeded") {
			return true
		}
	}
	return false
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				continue
			}
			cells[j] = fmt.Sprint(v)
		}
		rows[i] = cells
	}
	return rows
}
