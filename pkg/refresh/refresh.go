// Package refresh runs the ingestion pipeline: read the primary export,
// normalize rows, enrich prices from the reference list, classify machines
// into units, aggregate, and atomically replace snapshot artifacts. A failed
// cycle discards its output and leaves the previous artifacts authoritative.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/mbertho/scrapview/internal/metrics"
	"github.com/mbertho/scrapview/internal/utils"
	"github.com/mbertho/scrapview/pkg/aggregate"
	"github.com/mbertho/scrapview/pkg/ingest"
	"github.com/mbertho/scrapview/pkg/pricing"
	"github.com/mbertho/scrapview/pkg/snapshot"
	"github.com/mbertho/scrapview/pkg/units"
)

// Config locates the two data sources. SourcePath may be a local file or an
// http(s) URL; everything else is relative to the deployment's base directory.
type Config struct {
	SourcePath    string
	Sheet         string
	PricingDir    string
	PricingPrefix string
}

// Outcome is the structured result of one refresh cycle. Failures inside a
// cycle are converted into an Outcome at the cycle boundary; they never
// propagate out of the scheduler.
type Outcome struct {
	Family          string         `json:"family"`
	Success         bool           `json:"success"`
	DurationSeconds float64        `json:"durationSeconds"`
	RecordCounts    map[string]int `json:"recordCounts,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Runner executes refresh cycles for both scope families over one Config.
type Runner struct {
	cfg    Config
	store  *snapshot.Store
	lock   *utils.RefreshLock
	mreg   *metrics.Registry
	policy aggregate.Policy
}

// NewRunner wires a runner. lock and mreg may be nil (tests, one-shot CLI
// runs without metrics).
func NewRunner(cfg Config, store *snapshot.Store, lock *utils.RefreshLock, mreg *metrics.Registry) *Runner {
	return &Runner{
		cfg:    cfg,
		store:  store,
		lock:   lock,
		mreg:   mreg,
		policy: aggregate.DefaultPolicy(),
	}
}

// load reads and normalizes the primary export and applies price-reference
// enrichment. A missing price list degrades to in-export prices; a missing or
// unreadable export is fatal to the cycle.
func (r *Runner) load(ctx context.Context) (records []ingest.Record, totalRows int, lastMod time.Time, err error) {
	path := r.cfg.SourcePath
	if ingest.IsRemote(path) {
		local, cleanup, ferr := ingest.FetchRemote(ctx, path)
		if ferr != nil {
			return nil, 0, time.Time{}, ferr
		}
		defer cleanup()
		path = local
	}

	src, err := ingest.ReadSource(path, r.cfg.Sheet)
	if err != nil {
		return nil, 0, time.Time{}, err
	}
	totalRows = len(src.Rows)

	dropped := 0
	records = make([]ingest.Record, 0, totalRows)
	for _, row := range src.Rows {
		rec, ok := ingest.Normalize(row)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if r.mreg != nil {
		r.mreg.RowsParsed.Add(float64(len(records)))
		r.mreg.RowsDropped.Add(float64(dropped))
	}
	utils.Log.Infof("Read %s: %d rows, %d normalized, %d dropped (no machine id)",
		r.cfg.SourcePath, totalRows, len(records), dropped)

	if r.cfg.PricingDir != "" {
		table, found, perr := pricing.Load(r.cfg.PricingDir, r.cfg.PricingPrefix)
		switch {
		case perr != nil:
			// Degraded, not fatal: records keep their in-export prices.
			utils.Log.Warnf("Price list unreadable, using in-export prices: %v", perr)
			if r.mreg != nil {
				r.mreg.PriceListMisses.Inc()
			}
		case !found:
			utils.Log.Infof("No price list matching %q in %s, using in-export prices",
				r.cfg.PricingPrefix, r.cfg.PricingDir)
			if r.mreg != nil {
				r.mreg.PriceListMisses.Inc()
			}
		default:
			table.Enrich(records)
			utils.Log.Debugf("Enriched prices from reference list (%d materials)", len(table))
		}
	}

	return records, totalRows, src.LastModified, nil
}

// RefreshGlobal rebuilds the global snapshot: every row of the tracked
// workcenter family, aggregated across machines, units and reasons, plus the
// material reference catalog.
func (r *Runner) RefreshGlobal(ctx context.Context) Outcome {
	return r.cycle("global", func() (map[string]int, error) {
		records, totalRows, lastMod, err := r.load(ctx)
		if err != nil {
			return nil, err
		}
		family := records[:0:0]
		for _, rec := range records {
			if units.InFamily(rec.Machine) {
				family = append(family, rec)
			}
		}
		snap := &snapshot.Snapshot{
			Scope:              snapshot.ScopeGlobal,
			CreatedAt:          time.Now().UTC(),
			SourceLastModified: lastMod,
			RecordCount:        len(family),
			TotalRows:          totalRows,
			Aggregates:         aggregate.Run(family, units.Classify, r.policy),
			References:         ingest.BuildMaterialRefs(family),
			RawRecords:         family,
		}
		if err := r.store.Write(snap); err != nil {
			return nil, err
		}
		return map[string]int{snapshot.ScopeGlobal: len(family)}, nil
	})
}

// RefreshUnits rebuilds one snapshot per production unit. Aggregates cover
// every row classified into the unit; only reject rows are persisted as the
// raw-record subset, which is all the shop-floor screens drill into.
func (r *Runner) RefreshUnits(ctx context.Context) Outcome {
	return r.cycle("units", func() (map[string]int, error) {
		records, totalRows, lastMod, err := r.load(ctx)
		if err != nil {
			return nil, err
		}
		byUnit := make(map[string][]ingest.Record)
		for _, rec := range records {
			if u := units.Classify(rec.Machine); u != units.Unknown {
				byUnit[u] = append(byUnit[u], rec)
			}
		}
		counts := make(map[string]int, len(units.Order))
		now := time.Now().UTC()
		for _, unit := range units.Order {
			unitRecords := byUnit[unit]
			var rejects []ingest.Record
			for _, rec := range unitRecords {
				if rec.RejectQty > 0 {
					rejects = append(rejects, rec)
				}
			}
			snap := &snapshot.Snapshot{
				Scope:              snapshot.UnitScope(unit),
				CreatedAt:          now,
				SourceLastModified: lastMod,
				RecordCount:        len(rejects),
				TotalRows:          totalRows,
				Aggregates:         aggregate.Run(unitRecords, units.Classify, r.policy),
				RawRecords:         rejects,
			}
			if err := r.store.Write(snap); err != nil {
				return nil, err
			}
			counts[snap.Scope] = len(rejects)
		}
		return counts, nil
	})
}

// RefreshAll rebuilds both scope families from one process. The two families
// read the same source file independently; a failure in one does not undo the
// other's already-renamed artifacts.
func (r *Runner) RefreshAll(ctx context.Context) Outcome {
	start := time.Now()
	g := r.RefreshGlobal(ctx)
	u := r.RefreshUnits(ctx)

	out := Outcome{
		Family:          "all",
		Success:         g.Success && u.Success,
		DurationSeconds: time.Since(start).Seconds(),
		RecordCounts:    make(map[string]int, len(g.RecordCounts)+len(u.RecordCounts)),
	}
	for k, v := range g.RecordCounts {
		out.RecordCounts[k] = v
	}
	for k, v := range u.RecordCounts {
		out.RecordCounts[k] = v
	}
	for _, o := range []Outcome{g, u} {
		if o.Error != "" {
			if out.Error != "" {
				out.Error += "; "
			}
			out.Error += o.Error
		}
	}
	return out
}

// cycle is the refresh cycle boundary: cross-process lock, timing, metrics,
// and conversion of any failure into a structured Outcome.
func (r *Runner) cycle(familyName string, run func() (map[string]int, error)) Outcome {
	start := time.Now()
	out := Outcome{Family: familyName}

	if r.lock != nil {
		if err := r.lock.Lock(); err != nil {
			out.Error = fmt.Sprintf("refresh lock: %v", err)
			r.finish(&out, start)
			return out
		}
		defer r.lock.Unlock()
	}

	counts, err := run()
	if err != nil {
		utils.Log.Errorf("Refresh %s failed after %.2fs, previous snapshots stay live: %v",
			familyName, time.Since(start).Seconds(), err)
		out.Error = err.Error()
		r.finish(&out, start)
		return out
	}

	out.Success = true
	out.RecordCounts = counts
	r.finish(&out, start)
	utils.Log.Infof("Refresh %s completed in %.2fs: %v", familyName, out.DurationSeconds, counts)
	return out
}

func (r *Runner) finish(out *Outcome, start time.Time) {
	out.DurationSeconds = time.Since(start).Seconds()
	if r.mreg == nil {
		return
	}
	result := "success"
	if !out.Success {
		result = "failure"
	}
	r.mreg.RefreshRuns.WithLabelValues(out.Family, result).Inc()
	r.mreg.RefreshDuration.WithLabelValues(out.Family).Set(out.DurationSeconds)
	if out.Success {
		r.mreg.LastRefreshUnix.WithLabelValues(out.Family).Set(float64(time.Now().Unix()))
	}
}
