package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// Interval is how often every user is exported (default: 15m)
	Interval time.Duration

	// RunOnStart exports once immediately when started (default: true)
	RunOnStart bool
}

func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
	}
}

// exporter is the part of ExportService the processor drives.
type exporter interface {
	ExportAll(ctx context.Context) (int, error)
}

// ExportProcessor periodically exports stored monthly summaries.
type ExportProcessor struct {
	export exporter
	config ExportProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(export exporter, config ExportProcessorConfig) *ExportProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultExportProcessorConfig().Interval
	}
	return &ExportProcessor{
		export: export,
		config: config,
	}
}

// Start begins the export loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current export to finish.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.exportOnce(ctx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.exportOnce(ctx)
		}
	}
}

func (p *ExportProcessor) exportOnce(ctx context.Context) {
	start := time.Now()
	rows, err := p.export.ExportAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled export failed",
			"rows", rows,
			"error", err)
		return
	}
	slog.InfoContext(ctx, "Scheduled export complete",
		"rows", rows,
		"duration_ms", time.Since(start).Milliseconds())
}
