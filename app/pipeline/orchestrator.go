package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avoronov/newsmux/app/cfg"
	"github.com/avoronov/newsmux/app/channel"
	"github.com/avoronov/newsmux/app/database"
	"github.com/avoronov/newsmux/app/oracle"
	"github.com/avoronov/newsmux/app/similarity"
	"github.com/avoronov/newsmux/app/telegram"
)

const stageBatchSize = 200

const lastDigestDateKey = "last_digest_date"

var _ OrchestratorInterface = (*Orchestrator)(nil)

// OrchestratorInterface is the control surface the API layer depends on.
type OrchestratorInterface interface {
	RunTick(ctx context.Context) error
	GetStatus() Status
}

// Status is a point-in-time view of the pipeline for the control surface.
type Status struct {
	Running     bool                           `json:"running"`
	LastTickAt  *time.Time                     `json:"last_tick_at,omitempty"`
	LastTickErr string                         `json:"last_tick_error,omitempty"`
	TickCount   int64                          `json:"tick_count"`
	IndexSize   int                            `json:"index_size"`
	Ingested    map[database.IngestedState]int `json:"ingested"`
	Outgoing    map[database.OutgoingState]int `json:"outgoing"`
}

// Orchestrator drives all pipeline stages in a fixed order on each tick.
// Ticks never overlap: a tick that arrives while one is running is skipped.
type Orchestrator struct {
	ingestedRepo database.IngestedRepo
	outgoingRepo database.OutgoingRepo
	settingsRepo database.SettingsRepo
	configCache  *channel.ConfigCache
	reader       SourceReader
	cleaner      Cleaner
	extractor    ContentExtractor
	nameResolver NameResolver
	oracleClient oracle.Oracle
	transport    telegram.Transport
	resolver     *Resolver
	formatter    *Formatter

	tickInterval   time.Duration
	dedupWindow    time.Duration
	reactionWindow time.Duration
	summarizeLimit int
	deliveryLimit  int
	digestSize     int
	minItemLength  int
	excludedTag    string

	runLock sync.Mutex

	mu          sync.Mutex
	running     bool
	lastTickAt  *time.Time
	lastTickErr string
	tickCount   int64
}

func NewOrchestrator(configCache *channel.ConfigCache, ingestedRepo database.IngestedRepo,
	outgoingRepo database.OutgoingRepo, settingsRepo database.SettingsRepo,
	reader SourceReader, cleaner Cleaner, extractor ContentExtractor,
	nameResolver NameResolver, oracleClient oracle.Oracle, transport telegram.Transport) *Orchestrator {
	c := cfg.Get()

	index := similarity.NewIndex(c.SimilarityThreshold, time.Duration(c.DedupWindowHours)*time.Hour)

	return &Orchestrator{
		ingestedRepo: ingestedRepo,
		outgoingRepo: outgoingRepo,
		settingsRepo: settingsRepo,
		configCache:  configCache,
		reader:       reader,
		cleaner:      cleaner,
		extractor:    extractor,
		nameResolver: nameResolver,
		oracleClient: oracleClient,
		transport:    transport,
		resolver:     NewResolver(index, oracleClient),
		formatter:    NewFormatter(nameResolver),

		tickInterval:   time.Duration(c.TickInterval) * time.Second,
		dedupWindow:    time.Duration(c.DedupWindowHours) * time.Hour,
		reactionWindow: time.Duration(c.ReactionWindowDays) * 24 * time.Hour,
		summarizeLimit: c.SummarizeConcurrency,
		deliveryLimit:  c.SendConcurrency,
		digestSize:     c.DigestSize,
		minItemLength:  c.MinItemLength,
		excludedTag:    c.ExcludedTag,
	}
}

// Run ticks the pipeline until the context is cancelled. The first tick
// fires immediately.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("Pipeline orchestrator started", "interval", o.tickInterval.String())

	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	if err := o.RunTick(ctx); err != nil {
		slog.Error("Tick failed", "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Pipeline orchestrator stopped")
			return
		case <-ticker.C:
			if err := o.RunTick(ctx); err != nil {
				slog.Error("Tick failed", "error", err.Error())
			}
		}
	}
}

// RunTick runs every stage once, in pipeline order. Returns immediately if
// another tick is still in flight.
func (o *Orchestrator) RunTick(ctx context.Context) error {
	if !o.runLock.TryLock() {
		slog.Warn("Tick skipped, previous tick still running")
		return nil
	}
	defer o.runLock.Unlock()

	o.setRunning(true)
	defer o.setRunning(false)

	start := time.Now()
	slog.Debug("Tick started")

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"ingest", o.runIngest},
		{"clean", o.runClean},
		{"summarize", o.runSummarize},
		{"resolve", o.runResolve},
		{"format", o.runFormat},
		{"deliver", o.runDeliver},
		{"score", o.runScore},
		{"digest", o.runDigest},
	}

	var tickErr error
	for _, stage := range stages {
		if ctx.Err() != nil {
			tickErr = ctx.Err()
			break
		}
		if err := stage.fn(ctx); err != nil {
			slog.Error("Stage failed", "stage", stage.name, "error", err.Error())
			if tickErr == nil {
				tickErr = fmt.Errorf("stage %s: %w", stage.name, err)
			}
		}
	}

	o.recordTick(tickErr)

	slog.Info("Tick completed", "duration", time.Since(start).Round(time.Millisecond).String())

	return tickErr
}

// GetStatus reports orchestrator state and funnel counts by state.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	status := Status{
		Running:     o.running,
		LastTickAt:  o.lastTickAt,
		LastTickErr: o.lastTickErr,
		TickCount:   o.tickCount,
	}
	o.mu.Unlock()

	status.IndexSize = o.resolver.IndexSize()

	if counts, err := o.ingestedRepo.CountByState(); err == nil {
		status.Ingested = counts
	}
	if counts, err := o.outgoingRepo.CountByState(); err == nil {
		status.Outgoing = counts
	}

	return status
}

func (o *Orchestrator) setRunning(running bool) {
	o.mu.Lock()
	o.running = running
	o.mu.Unlock()
}

func (o *Orchestrator) recordTick(err error) {
	now := time.Now()
	o.mu.Lock()
	o.lastTickAt = &now
	o.tickCount++
	if err != nil {
		o.lastTickErr = err.Error()
	} else {
		o.lastTickErr = ""
	}
	o.mu.Unlock()
}
