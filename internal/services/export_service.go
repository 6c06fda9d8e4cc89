package services

import (
	"context"
	"errors"
	"fmt"

	"oshikatsu/internal/core"
	"oshikatsu/internal/log"
	"oshikatsu/internal/sheets"
)

// ExportService copies stored monthly summaries to an external sheet. It
// exports what is stored and never recomputes.
type ExportService struct {
	users    UserDirectory
	reader   SummaryReader
	exporter sheets.SummaryExporter
	logger   *log.Logger
}

func NewExportService(users UserDirectory, reader SummaryReader, exporter sheets.SummaryExporter) *ExportService {
	return &ExportService{
		users:    users,
		reader:   reader,
		exporter: exporter,
		logger:   log.ForComponent(log.ComponentSheets),
	}
}

// ExportMonthly writes every monthly summary of the user and returns the
// number of rows exported.
func (s *ExportService) ExportMonthly(ctx context.Context, userID int64) (int, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.exportUser(ctx, user)
}

func (s *ExportService) exportUser(ctx context.Context, user core.User) (int, error) {
	rows, err := s.reader.ListMonthly(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("list monthly summaries: %w", err)
	}
	n, err := s.exporter.ExportMonthly(ctx, user.Username, rows)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", user.Username, err)
	}
	s.logger.InfoContext(ctx, "Monthly summaries exported",
		log.FieldUserID, user.ID,
		log.FieldOperation, log.OpExport,
		"rows", n)
	return n, nil
}

// ExportAll exports every user, continuing past failures.
func (s *ExportService) ExportAll(ctx context.Context) (int, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	var (
		total int
		errs  []error
	)
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.exportUser(ctx, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}
