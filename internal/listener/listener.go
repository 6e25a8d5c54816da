// Package listener runs the fetch-process-export loop on a timer. One cycle
// pulls new mail, processes fetched receipts against the ledger, and
// refreshes the reconciliation report.
package listener

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"receiptsync/internal/config"
	"receiptsync/internal/connectors"
	gmailconnector "receiptsync/internal/connectors/gmail"
	imapconnector "receiptsync/internal/connectors/imap"
	"receiptsync/internal/ledger"
	"receiptsync/internal/pipeline"
	"receiptsync/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	log       zerolog.Logger
	processor *pipeline.ProcessingService
}

func NewService(db *storage.DB, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		db:        db,
		cfg:       cfg,
		log:       log,
		processor: pipeline.NewProcessingService(db, cfg, log),
	}
}

// Run loops until the context is cancelled. Cycle errors are logged, not
// fatal: a flaky mailbox or ledger outage should not take the daemon down.
func (s *Service) Run(ctx context.Context) error {
	defer s.processor.Close()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error().Err(err).Msg("listener cycle")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	summary, err := s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil && !errors.Is(err, pipeline.ErrBusy) {
		// A ledger auth failure also lands here: log it and let the next
		// cycle retry the pending receipts.
		if !errors.Is(err, ledger.ErrAuth) {
			return err
		}
		s.log.Warn().Err(err).Msg("ledger credentials rejected, receipts left pending")
	}

	if s.cfg.MailListenerAutoExport && summary.Receipts > 0 {
		if err := s.exportReport(); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("provider", provider).
		Int("fetched", fetchResult.Fetched).
		Int("stored", fetchResult.Stored).
		Int("known", fetchResult.Known).
		Int("receipts", summary.Receipts).
		Int("matched", summary.Matched).
		Int("synced", summary.Synced).
		Int("skipped", summary.Skipped).
		Msg("listener cycle done")
	return nil
}

func (s *Service) exportReport() error {
	rows, err := s.db.GetExportRows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	filename := fmt.Sprintf("reconciliation_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
	return pipeline.ExportReceiptsToXLSX(rows, outputPath)
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
