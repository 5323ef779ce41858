package subwatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// Runs the scan cycle over the target list
type Engine struct {
	targets   *TargetStore
	runner    ToolRunner
	snapshots *SnapshotStore
	notifier  Notifier
	// optional
	history  HistoryRepo
	resolver Resolver

	now func() time.Time
}

func NewEngine(conf *Configuration, notifier Notifier) *Engine {
	e := &Engine{
		targets:   NewTargetStore(conf.FS(), conf.TargetsPath),
		runner:    NewToolRunner(DefaultTools(conf.Tools)),
		snapshots: NewSnapshotStore(conf.FS(), conf.OutputDir),
		notifier:  notifier,
		now:       time.Now,
	}
	if conf.HistoryDB != "" {
		e.history = NewHistoryRepo(conf.HistoryDB)
	}
	if conf.Resolver != "" {
		e.resolver = NewResolver(conf.Resolver)
	}
	return e
}

func (e *Engine) Close() error {
	if e.history == nil {
		return nil
	}
	return e.history.Close()
}

type RunSummary struct {
	RunID   string
	Scanned int
	Skipped int
	Failed  int
	// New hostnames over all domains
	New int
}

// Entrypoint of a scan. Every enabled target is scanned in file order, one
// at a time. A failing domain is logged and the loop moves on. The target
// list is saved once at the end.
func (e *Engine) Run(ctx context.Context) (*RunSummary, error) {
	sum := &RunSummary{RunID: uuid.NewString()}
	log.Info().Str("run", sum.RunID).Str("targets", e.targets.Path()).Msg("starting subdomain reconnaissance")

	list, err := e.targets.Load()
	if err != nil {
		if errors.Is(err, ErrTargetsNotFound) {
			created, terr := e.targets.CreateTemplate()
			switch {
			case terr != nil:
				log.Warn().Err(terr).Msg("failed to create targets template")
			case created:
				log.Info().Str("file", e.targets.Path()).Msg("created sample targets file, edit it and run again")
			}
		}
		log.Error().Err(err).Msg("failed to load targets")
		return nil, errors.Wrap(err, "failed to load targets")
	}

	if len(list.Targets) == 0 {
		log.Warn().Msg("no targets found in targets file")
		return sum, nil
	}

	for _, t := range list.Targets {
		if ctx.Err() != nil {
			break
		}

		switch {
		case t == nil:
			log.Warn().Msg("skipping empty target entry")
			sum.Skipped++
			continue
		case t.Domain == "":
			log.Warn().Msg("skipping target with no domain")
			sum.Skipped++
			continue
		case !t.Enabled:
			log.Info().Str("domain", t.Domain).Msg("skipping disabled target")
			sum.Skipped++
			continue
		}

		n, err := e.scanTarget(ctx, sum.RunID, t)
		if err != nil {
			log.Error().Err(err).Str("domain", t.Domain).Msg("scan failed")
			sum.Failed++
			continue
		}
		sum.Scanned++
		sum.New += n
	}

	if err := e.targets.Save(list); err != nil {
		log.Error().Err(err).Msg("failed to save targets")
		return sum, errors.Wrap(err, "failed to save targets")
	}
	log.Debug().Msg("updated targets file with scan timestamps")

	log.Info().
		Int("scanned", sum.Scanned).
		Int("skipped", sum.Skipped).
		Int("failed", sum.Failed).
		Int("new", sum.New).
		Msg("reconnaissance complete")

	if err := ctx.Err(); err != nil {
		return sum, errors.Wrap(err, "scan interrupted")
	}
	return sum, nil
}

// Scans a single domain and returns the number of new hostnames.
func (e *Engine) scanTarget(ctx context.Context, runID string, t *Target) (n int, err error) {
	domain := t.Domain
	rec := &ScanRecord{RunID: runID, Domain: domain, Resolving: -1}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while scanning %s: %v", domain, r)
		}
		if err != nil {
			rec.Error = err.Error()
		}
		// an attempt counts as a scan
		t.LastScanned = NewTimestamp(e.now().UTC())
		e.record(rec)
	}()

	log.Info().Str("domain", domain).Msg("scanning")

	results := e.runner.Run(ctx, domain)
	if err := ctx.Err(); err != nil {
		// partial results would replace the baseline
		return 0, errors.Wrap(err, "tools interrupted")
	}
	rec.Tools = toolStats(results)

	current := Aggregate(results...)
	log.Info().Str("domain", domain).Int("count", current.Len()).Msg("found subdomains")

	previous, err := e.snapshots.Previous(domain)
	if err != nil {
		return 0, err
	}
	log.Info().Str("domain", domain).Int("count", previous.Len()).Msg("previous scan")

	fresh := current.Diff(previous)
	rec.Total, rec.Previous, rec.New = current.Len(), previous.Len(), fresh.Len()

	if fresh.Len() > 0 {
		log.Info().Str("domain", domain).Int("count", fresh.Len()).Msg("new subdomains")
		rec.NewHosts = jsonColumn(fresh.Sorted())

		report := Report{Domain: domain, Hosts: fresh, Resolving: -1, Time: e.now()}
		if e.resolver != nil {
			report.Resolving = CountResolving(ctx, e.resolver, fresh.Sorted())
			rec.Resolving = report.Resolving
			log.Info().Str("domain", domain).Int("resolving", report.Resolving).Msg("checked new subdomains")
		}

		// delivery problems are logged by the notifier and never stop the scan
		rec.Notified = e.notifier.Report(ctx, report) == nil
	} else {
		log.Info().Str("domain", domain).Msg("no new subdomains")
	}

	fpath, err := e.snapshots.Save(domain, current)
	if err != nil {
		return 0, err
	}
	log.Info().Str("domain", domain).Int("count", current.Len()).Str("file", fpath).Msg("saved subdomains")

	return fresh.Len(), nil
}

func (e *Engine) record(rec *ScanRecord) {
	if e.history == nil {
		return
	}
	if err := e.history.AddScans(rec); err != nil {
		log.Warn().Err(err).Str("domain", rec.Domain).Msg("failed to record scan")
	}
}

// Runs a scan, then again every interval until the context is done.
func (e *Engine) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("invalid interval %s", interval)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if _, err := e.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scan run failed")
		}

		log.Info().Dur("interval", interval).Time("next", e.now().Add(interval)).Msg("sleeping")
		timer.Reset(interval)
	}
}

func toolStats(results []ToolResult) datatypes.JSON {
	stats := make([]ToolStat, 0, len(results))
	for _, r := range results {
		stats = append(stats, newToolStat(r))
	}
	return jsonColumn(stats)
}

func jsonColumn(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
