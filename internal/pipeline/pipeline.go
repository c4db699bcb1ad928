// Package pipeline wires discovery, parsing and the store into the ingestion
// runs the command line exposes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dann1kid/faf-ddos-incidents/internal/analysis"
	"github.com/dann1kid/faf-ddos-incidents/internal/clientlog"
	"github.com/dann1kid/faf-ddos-incidents/internal/config"
	"github.com/dann1kid/faf-ddos-incidents/internal/gamelog"
	"github.com/dann1kid/faf-ddos-incidents/internal/logfinder"
	"github.com/dann1kid/faf-ddos-incidents/internal/model"
	"github.com/dann1kid/faf-ddos-incidents/internal/store"
	"github.com/dann1kid/faf-ddos-incidents/pkg/faflog/pattern"
)

// Pipeline runs ingestion and reporting against one store.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	lib   *pattern.Library
	log   *zap.Logger

	game   *gamelog.Parser
	client *clientlog.Parser
}

// New returns a Pipeline. A nil lib selects the built-in patterns.
func New(cfg *config.Config, st store.Store, lib *pattern.Library, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if lib == nil {
		var err error
		if lib, err = pattern.Builtin(); err != nil {
			return nil, fmt.Errorf("failed to load built-in patterns: %w", err)
		}
	}
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		lib:    lib,
		log:    log,
		game:   &gamelog.Parser{Library: lib, Logger: log},
		client: &clientlog.Parser{Library: lib, Logger: log},
	}, nil
}

// LoadLibrary loads the pattern file at path, or the built-in patterns when
// path is empty.
func LoadLibrary(path string) (*pattern.Library, error) {
	if path == "" {
		return pattern.Builtin()
	}
	return pattern.LoadLibrary(path)
}

// InitStorage creates or updates the schema.
func (p *Pipeline) InitStorage(ctx context.Context) error {
	return p.store.Migrate(ctx)
}

// ResetStorage drops all data and recreates the schema.
func (p *Pipeline) ResetStorage(ctx context.Context) error {
	return p.store.Reset(ctx)
}

// parsed holds the transcript of one file; exactly one field is set.
type parsed struct {
	session *model.SessionTranscript
	client  *model.ClientTranscript
}

// Ingest discovers and commits every log file of category. Files already
// committed with an unchanged modification time are skipped unless force is
// set. Per-file problems are reported in the summaries and logged; the
// returned error is reserved for context cancellation.
func (p *Pipeline) Ingest(ctx context.Context, category model.Category, force bool) ([]store.CommitSummary, error) {
	runID := uuid.NewString()
	log := p.log.With(zap.String("category", string(category)), zap.String("run_id", runID))

	files, skipped, err := logfinder.Discover(p.cfg.LogsDir, category)
	if err != nil {
		if errors.Is(err, logfinder.ErrNoLogFiles) || errors.Is(err, logfinder.ErrLogDirNotFound) {
			log.Warn("nothing to ingest", zap.String("logs_dir", p.cfg.LogsDir), zap.Error(err))
			return []store.CommitSummary{}, nil
		}
		return nil, err
	}

	summaries := make([]store.CommitSummary, 0, len(files)+len(skipped))
	for _, s := range skipped {
		log.Warn("skipping file", zap.String("file", s.Path), zap.Error(s.Reason))
		summaries = append(summaries, store.CommitSummary{Path: s.Path, Category: category, Skipped: true, Err: s.Reason})
	}

	todo := make([]logfinder.File, 0, len(files))
	for _, f := range files {
		if !force {
			unchanged, err := p.unchanged(ctx, f)
			if err != nil {
				return nil, err
			}
			if unchanged {
				log.Debug("file unchanged since last run", zap.String("file", f.Path))
				summaries = append(summaries, store.CommitSummary{Path: f.Path, Category: category, MatchUID: f.MatchUID, Skipped: true})
				continue
			}
		}
		todo = append(todo, f)
	}

	pool := pond.NewResultPool[parsed](p.workers(), pond.WithContext(ctx))
	defer pool.StopAndWait()

	tasks := make([]pond.Result[parsed], len(todo))
	for i, f := range todo {
		tasks[i] = pool.SubmitErr(func() (parsed, error) {
			return p.parse(ctx, f, log)
		})
	}

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			log.Warn("ingestion canceled", zap.Int("remaining", len(tasks)-i))
			logTotals(log, summaries)
			return summaries, err
		}

		f := todo[i]
		res, err := task.Wait()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error("failed to parse file", zap.String("file", f.Path), zap.Error(err))
			summaries = append(summaries, store.CommitSummary{Path: f.Path, Category: category, MatchUID: f.MatchUID, Err: err})
			continue
		}

		sum := p.commit(ctx, res, runID)
		if sum.Err != nil {
			log.Error("failed to commit file", zap.String("file", f.Path), zap.Error(sum.Err))
		} else {
			logSummary(log, sum)
		}
		summaries = append(summaries, sum)
	}
	if err := ctx.Err(); err != nil {
		logTotals(log, summaries)
		return summaries, err
	}

	logTotals(log, summaries)
	return summaries, nil
}

// Rebuild drops all data and ingests every category from scratch.
func (p *Pipeline) Rebuild(ctx context.Context) ([]store.CommitSummary, error) {
	if err := p.store.Reset(ctx); err != nil {
		return nil, err
	}
	var all []store.CommitSummary
	for _, category := range model.Categories {
		sums, err := p.Ingest(ctx, category, true)
		all = append(all, sums...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// Status returns the row counts of the store.
func (p *Pipeline) Status(ctx context.Context) (store.Status, error) {
	return p.store.Status(ctx)
}

// ReportOptions returns the configured report options with minOccurrences
// overriding the configured threshold when positive.
func (p *Pipeline) ReportOptions(minOccurrences int) analysis.ReportOptions {
	opts := analysis.ReportOptions{
		MinMatches:     p.cfg.Report.MinOccurrences,
		MinPlayers:     p.cfg.Report.MinPlayers,
		IncludePrivate: p.cfg.Report.IncludePrivate,
		Limit:          p.cfg.Report.Limit,
	}
	if minOccurrences > 0 {
		opts.MinMatches = minOccurrences
	}
	return opts
}

// Report builds the suspect report with the configured options.
func (p *Pipeline) Report(ctx context.Context, minOccurrences int) (*analysis.Report, error) {
	return p.ReportWithOptions(ctx, p.ReportOptions(minOccurrences))
}

// ReportWithOptions builds the suspect report.
func (p *Pipeline) ReportWithOptions(ctx context.Context, opts analysis.ReportOptions) (*analysis.Report, error) {
	return analysis.New(p.store.DB()).SuspectReport(ctx, opts)
}

// ScoreRisk recomputes every player's risk score as of now and stores it.
func (p *Pipeline) ScoreRisk(ctx context.Context, now time.Time) ([]analysis.RiskScore, error) {
	scores, err := analysis.New(p.store.DB()).RiskScores(ctx, now)
	if err != nil {
		return nil, err
	}
	byUID := make(map[int64]float64, len(scores))
	for _, s := range scores {
		byUID[s.UID] = s.Score
	}
	if err := p.store.SetRiskScores(ctx, byUID); err != nil {
		return nil, err
	}
	p.log.Info("risk scores updated", zap.Int("scored_players", len(scores)))
	return scores, nil
}

func (p *Pipeline) workers() int {
	if p.cfg.Ingest.ParseWorkers < 1 {
		return 1
	}
	return p.cfg.Ingest.ParseWorkers
}

func (p *Pipeline) unchanged(ctx context.Context, f logfinder.File) (bool, error) {
	pf, err := p.store.ProcessedFile(ctx, f.Path)
	if err != nil {
		return false, err
	}
	return pf != nil && pf.ModTime == f.ModTime.UnixNano(), nil
}

func (p *Pipeline) parse(ctx context.Context, f logfinder.File, log *zap.Logger) (parsed, error) {
	switch f.Category {
	case model.CategoryGame:
		parser := *p.game
		parser.Logger = log
		tr, err := parser.Parse(ctx, f.Path)
		return parsed{session: tr}, err
	case model.CategoryClient:
		parser := *p.client
		parser.Logger = log
		tr, err := parser.Parse(ctx, f.Path)
		return parsed{client: tr}, err
	}
	return parsed{}, fmt.Errorf("unknown log category %q", f.Category)
}

func (p *Pipeline) commit(ctx context.Context, res parsed, runID string) store.CommitSummary {
	if res.session != nil {
		sum, _ := p.store.CommitSession(ctx, res.session, runID)
		return sum
	}
	sum, _ := p.store.CommitClient(ctx, res.client, runID)
	return sum
}

func logSummary(log *zap.Logger, sum store.CommitSummary) {
	fields := []zap.Field{
		zap.String("file", sum.Path),
		zap.Int("players_created", sum.Players.Created),
		zap.Int("players_updated", sum.Players.Updated),
		zap.Int("ips_created", sum.IPs.Created),
		zap.Int("bindings_created", sum.Bindings.Created),
		zap.Int("dropped", sum.Dropped),
		zap.Int("skipped_lines", sum.SkippedLines),
	}
	if sum.Category == model.CategoryGame {
		fields = append(fields,
			zap.Int64("match_uid", sum.MatchUID),
			zap.Int("participations_created", sum.Participations.Created))
	} else {
		fields = append(fields,
			zap.Int("events_appended", sum.EventsAppended),
			zap.Int("events_replaced", sum.EventsReplaced))
	}
	log.Info("committed file", fields...)
}

// Totals counts the outcome of an ingestion run.
type Totals struct {
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Tally counts summaries by outcome. Skipped files with a reason count as skipped.
func Tally(summaries []store.CommitSummary) Totals {
	var t Totals
	for _, s := range summaries {
		switch {
		case s.Skipped:
			t.Skipped++
		case s.Err != nil:
			t.Failed++
		default:
			t.Parsed++
		}
	}
	return t
}

func logTotals(log *zap.Logger, summaries []store.CommitSummary) {
	t := Tally(summaries)
	log.Info("ingestion finished",
		zap.Int("parsed", t.Parsed),
		zap.Int("skipped", t.Skipped),
		zap.Int("failed", t.Failed))
}
