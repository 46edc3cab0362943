package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/audit"
	"github.com/shrimpsizemoose/allotter/internal/gsheet"
	"github.com/shrimpsizemoose/allotter/internal/metrics"
	"github.com/shrimpsizemoose/allotter/internal/models"
	"github.com/shrimpsizemoose/allotter/internal/sheetsync"
	"github.com/shrimpsizemoose/allotter/internal/store"
	"github.com/shrimpsizemoose/allotter/internal/writeback"
)

var ErrSpreadsheetNotConfigured = errors.New("spreadsheet id is not configured")

// SheetClient is everything the service needs from the spreadsheet.
type SheetClient interface {
	sheetsync.SheetReader
	writeback.SheetWriter
}

type Service struct {
	Config *Config
	Store  store.AllotmentStore
	Auth   *Auth
	Sheets SheetClient
	Audit  *audit.Logger

	syncer  *sheetsync.Synchronizer
	locator *sheetsync.Locator
	mirror  *writeback.Engine
	now     func() time.Time
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	auditLog, err := audit.New(config.Audit.Path, config.Audit.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to init audit log: %w", err)
	}

	store, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	sheets, err := newSheetClient(context.Background(), config.GSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to init sheets client: %w", err)
	}

	return New(config, store, auth, sheets, auditLog)
}

func newSheetClient(ctx context.Context, cfg GSheetConfig) (SheetClient, error) {
	client, err := gsheet.NewClient(ctx, gsheet.Credentials{
		CredentialsPath: cfg.CredentialsPath,
		ClientEmail:     cfg.ClientEmail,
		PrivateKey:      cfg.PrivateKey,
	}, cfg.MaxRetries)
	if errors.Is(err, gsheet.ErrCredentialsMissing) {
		logger.Error.Printf("No Google credentials configured, sync and write-back will fail")
		return unconfiguredSheets{}, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// New wires a service from already built parts.
func New(config *Config, store store.AllotmentStore, auth *Auth, sheets SheetClient, auditLog *audit.Logger) (*Service, error) {
	opts, err := config.SyncOptions()
	if err != nil {
		return nil, err
	}

	s := &Service{
		Config:  config,
		Store:   store,
		Auth:    auth,
		Sheets:  sheets,
		Audit:   auditLog,
		syncer:  sheetsync.NewSynchronizer(sheets, store, opts, auditLog.For("sync")),
		locator: sheetsync.NewLocator(sheets, opts.Locator),
		now:     time.Now,
	}
	s.mirror = writeback.NewEngine(sheets, config.GSheet.SpreadsheetID, auditLog.For("writeback")).
		WithClock(func() time.Time { return s.now() })
	return s, nil
}

// Sync pulls the whole sheet into the store.
func (s *Service) Sync(ctx context.Context) (*sheetsync.Result, error) {
	if s.Config.GSheet.SpreadsheetID == "" {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return nil, ErrSpreadsheetNotConfigured
	}

	start := time.Now()
	res, err := s.syncer.Run(ctx, s.Config.GSheet.SpreadsheetID)
	metrics.SyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to sync sheet: %w", err)
	}

	metrics.SyncRunsTotal.WithLabelValues("ok").Inc()
	metrics.SyncRowsUpserted.Add(float64(res.Count))
	return res, nil
}

func (s *Service) ListAllotments(ctx context.Context, email string) ([]models.Allotment, error) {
	return s.Store.ListByTeacher(ctx, models.NormalizeEmail(email))
}

type UpdateResult struct {
	Allotment *models.Allotment
	WriteBack writeback.Outcome
}

// UpdateAllotment commits the teacher edit, then mirrors it to the sheet.
// A failed mirror is reported in the result and never undoes the commit.
func (s *Service) UpdateAllotment(ctx context.Context, email string, req models.UpdateRequest) (*UpdateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	a, err := s.Store.GetForTeacher(ctx, req.ID, models.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}

	a.ApplyUpdate(req, s.now().UTC())
	if err := s.Store.SaveEdits(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save allotment: %w", err)
	}
	metrics.UpdatesTotal.WithLabelValues(a.Status).Inc()

	outcome := s.mirror.Mirror(ctx, a, writeback.Change{
		VideoLink:     req.VideoLink,
		QuestionError: req.QuestionErrorIdentified,
	})
	metrics.WriteBackTotal.WithLabelValues(string(outcome.Status)).Inc()

	return &UpdateResult{Allotment: a, WriteBack: outcome}, nil
}

// PreviewHeaders returns the first row of the first tab.
func (s *Service) PreviewHeaders(ctx context.Context) (string, []string, error) {
	if s.Config.GSheet.SpreadsheetID == "" {
		return "", nil, ErrSpreadsheetNotConfigured
	}
	return s.locator.Preview(ctx, s.Config.GSheet.SpreadsheetID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.Store.Ping(ctx)
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}
	if s.Audit != nil {
		if err := s.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}

type unconfiguredSheets struct{}

func (unconfiguredSheets) SheetTitles(context.Context, string) ([]string, error) {
	return nil, gsheet.ErrCredentialsMissing
}

func (unconfiguredSheets) ReadRange(context.Context, string, string) ([][]string, error) {
	return nil, gsheet.ErrCredentialsMissing
}

func (unconfiguredSheets) BatchWrite(context.Context, string, []gsheet.CellUpdate) (int64, error) {
	return 0, gsheet.ErrCredentialsMissing
}
