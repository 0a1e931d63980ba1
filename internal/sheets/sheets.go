// Package sheets appends quiz question/answer pairs to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/justestif/go-chart-quiz/internal/apperr"
	"github.com/justestif/go-chart-quiz/internal/config"
	"github.com/justestif/go-chart-quiz/internal/logging"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// ErrSpreadsheetNotFound is returned when no spreadsheet has the configured name.
var ErrSpreadsheetNotFound = fmt.Errorf("%w: spreadsheet", apperr.ErrNotFound)

// Logger appends rows to the first sheet of one spreadsheet.
// The spreadsheet ID and sheet title are resolved on first use and memoised.
type Logger struct {
	sheets *sheets.Service
	drive  *drive.Service
	cfg    config.SheetsConfig
	logger *zap.Logger

	mu            sync.Mutex
	spreadsheetID string
	sheetTitle    string
}

// New creates a Logger. Without opts it authenticates with the service-account key
// at cfg.CredentialsFile.
func New(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*Logger, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope),
		}
	}
	logger = logging.OrNop(logger)

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating sheets service: %w", apperr.ErrAuth, err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating drive service: %w", apperr.ErrAuth, err)
	}

	return &Logger{
		sheets:        sheetsSvc,
		drive:         driveSvc,
		cfg:           cfg,
		logger:        logger,
		spreadsheetID: cfg.SpreadsheetID,
		sheetTitle:    cfg.SheetTitle,
	}, nil
}

// Append writes one [question, answer] row. Nothing is validated or deduplicated,
// and failures are not retried.
func (l *Logger) Append(ctx context.Context, question, answer string) error {
	id, title, err := l.target(ctx)
	if err != nil {
		return err
	}

	row := &sheets.ValueRange{Values: [][]any{{question, answer}}}
	_, err = l.sheets.Spreadsheets.Values.Append(id, quoteSheet(title), row).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("appending answer row", err)
	}

	l.logger.Info("answer logged",
		zap.String("spreadsheet_id", id),
		zap.String("sheet", title),
	)
	return nil
}

// target resolves the spreadsheet ID and first sheet title once.
func (l *Logger) target(ctx context.Context) (string, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.spreadsheetID == "" {
		id, err := l.findByName(ctx, l.cfg.SpreadsheetName)
		if err != nil {
			return "", "", err
		}
		l.spreadsheetID = id
	}

	if l.sheetTitle == "" {
		doc, err := l.sheets.Spreadsheets.Get(l.spreadsheetID).
			Fields("sheets.properties.title").
			Context(ctx).
			Do()
		if err != nil {
			return "", "", classify("reading spreadsheet", err)
		}
		if len(doc.Sheets) == 0 || doc.Sheets[0].Properties == nil {
			return "", "", fmt.Errorf("spreadsheet %s has no sheets: %w", l.spreadsheetID, ErrSpreadsheetNotFound)
		}
		l.sheetTitle = doc.Sheets[0].Properties.Title
	}

	return l.spreadsheetID, l.sheetTitle, nil
}

func (l *Logger) findByName(ctx context.Context, name string) (string, error) {
	list, err := l.drive.Files.List().
		Q(spreadsheetQuery(name)).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("finding spreadsheet", err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%q: %w", name, ErrSpreadsheetNotFound)
	}
	return list.Files[0].Id, nil
}

// spreadsheetQuery builds a Drive search for a live spreadsheet named name.
func spreadsheetQuery(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, "'", `\'`).Replace(name)
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escaped, spreadsheetMimeType)
}

// quoteSheet turns a sheet title into an A1 range covering the whole sheet.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", op, apperr.ErrAuth, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", op, apperr.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrTransient, err)
}
