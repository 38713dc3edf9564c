package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/juank/cpa-dashboard/backend/internal/db"
	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor/common"
	"github.com/juank/cpa-dashboard/backend/internal/processor/parsers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// File name prefixes of the two exports dropped in the inbox.
const (
	RegistrationsPrefix = "Registrati-"
	ActivityPrefix      = "ActivityRe-"
)

const consolidatedFile = "consolidated_clients.json"

var (
	// ErrUnsupportedFile is returned for report files no parser can read.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrIncompletePair is returned by RunAll when the inbox lacks one of the reports.
	ErrIncompletePair = errors.New("inbox needs both a registrations and an activity report")
)

type Engine struct {
	OutputDir string
	DB        db.Database
	Logger    *zap.Logger
	// Sheet names the worksheet read from xlsx reports; empty means the first.
	Sheet string
}

func NewEngine(outputDir string, database db.Database, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{OutputDir: outputDir, DB: database, Logger: logger}
}

// ProcessFiles reads both reports concurrently and reconciles them.
func (e *Engine) ProcessFiles(ctx context.Context, regPath, actPath string) ([]models.Row, error) {
	regReader, err := e.reader(regPath)
	if err != nil {
		return nil, err
	}
	actReader, err := e.reader(actPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		reg, act []models.Record
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		reg, err = regReader.Read(regPath)
		if err != nil {
			return fmt.Errorf("read registrations %s: %w", filepath.Base(regPath), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		act, err = actReader.Read(actPath)
		if err != nil {
			return fmt.Errorf("read activity %s: %w", filepath.Base(actPath), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := Combine(reg, act)
	e.Logger.Info("Reports combined",
		zap.Int("registrations", len(reg)),
		zap.Int("activity", len(act)),
		zap.Int("clients", len(rows)))
	return rows, nil
}

func (e *Engine) reader(path string) (common.RecordReader, error) {
	r := parsers.Pick(path)
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(path))
	}
	if x, ok := r.(*parsers.XLSXParser); ok {
		x.Sheet = e.Sheet
	}
	return r, nil
}

// NewUpload starts the audit record for one pair of report files.
func NewUpload(regFile, actFile string) models.Upload {
	return models.Upload{
		ID:                uuid.New(),
		RegistrationsFile: regFile,
		ActivityFile:      actFile,
		Status:            "processing",
		CreatedAt:         time.Now().UTC(),
	}
}

// Save upserts rows into the store, records the upload and writes the
// consolidated JSON next to the other outputs.
func (e *Engine) Save(ctx context.Context, rows []models.Row, upload models.Upload) error {
	clients := make([]models.Client, len(rows))
	for i, r := range rows {
		clients[i] = models.ClientFromRow(r)
	}

	if err := e.DB.UpsertClients(ctx, clients); err != nil {
		return fmt.Errorf("upsert clients: %w", err)
	}

	upload.Rows = len(rows)
	upload.Status = "completed"
	if err := e.DB.CreateUpload(ctx, upload); err != nil {
		return fmt.Errorf("record upload: %w", err)
	}

	if e.OutputDir != "" {
		if err := e.saveJSON(consolidatedFile, rows); err != nil {
			return err
		}
	}

	e.Logger.Info("Clients saved",
		zap.String("upload_id", upload.ID.String()),
		zap.Int("rows", len(rows)))
	return nil
}

// RunAll processes and saves the newest pair of reports found in inboxDir.
func (e *Engine) RunAll(ctx context.Context, inboxDir string) ([]models.Row, error) {
	regPath, err := latestReport(inboxDir, RegistrationsPrefix)
	if err != nil {
		return nil, err
	}
	actPath, err := latestReport(inboxDir, ActivityPrefix)
	if err != nil {
		return nil, err
	}
	if regPath == "" || actPath == "" {
		return nil, ErrIncompletePair
	}

	rows, err := e.ProcessFiles(ctx, regPath, actPath)
	if err != nil {
		return nil, err
	}

	upload := NewUpload(filepath.Base(regPath), filepath.Base(actPath))
	if err := e.Save(ctx, rows, upload); err != nil {
		return nil, err
	}
	return rows, nil
}

// Watch re-runs RunAll whenever report files in inboxDir settle for the
// debounce interval. It returns when ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, inboxDir string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(inboxDir); err != nil {
		return fmt.Errorf("watch %s: %w", inboxDir, err)
	}
	e.Logger.Info("Watching inbox", zap.String("dir", inboxDir))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isReport(filepath.Base(ev.Name)) {
				continue
			}
			e.Logger.Debug("Inbox changed", zap.String("file", ev.Name))
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.Logger.Warn("Watcher error", zap.Error(err))
		case <-timer.C:
			if _, err := e.RunAll(ctx, inboxDir); err != nil {
				if errors.Is(err, ErrIncompletePair) {
					e.Logger.Debug("Waiting for the second report", zap.String("dir", inboxDir))
					continue
				}
				e.Logger.Error("Inbox run failed", zap.Error(err))
			}
		}
	}
}

func isReport(name string) bool {
	if parsers.Pick(name) == nil {
		return false
	}
	return strings.HasPrefix(name, RegistrationsPrefix) || strings.HasPrefix(name, ActivityPrefix)
}

// latestReport returns the most recently modified supported file in dir whose
// name starts with prefix, or "" when there is none.
func latestReport(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var (
		best    string
		bestMod time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || parsers.Pick(name) == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) || (info.ModTime().Equal(bestMod) && name > filepath.Base(best)) {
			best = filepath.Join(dir, name)
			bestMod = info.ModTime()
		}
	}
	return best, nil
}

func (e *Engine) saveJSON(filename string, data interface{}) error {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(e.OutputDir, filename)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
