// Package aggregate folds normalized records into global, per-machine,
// per-unit and per-reason totals. Two legacy implementations of these sums
// disagreed on whether zero-reject rows count toward production; the policy
// flag below names that choice instead of forking the code.
package aggregate

import (
	"sort"

	"github.com/mbertho/scrapview/pkg/ingest"
	"github.com/mbertho/scrapview/pkg/units"
)

// Totals is one accumulator scope.
type Totals struct {
	RejectQuantity      float64 `json:"rejectQuantity"`
	RejectCost          float64 `json:"rejectCost"`
	ProductionQuantity  float64 `json:"productionQuantity"`
	Revenue             float64 `json:"revenue"`
	NonConformityRate   float64 `json:"nonConformityRate"`
	WeightedAvgUnitCost float64 `json:"weightedAvgUnitCost"`
}

// MachineTotals is the per-machine leaderboard entry.
type MachineTotals struct {
	Machine string `json:"machine"`
	Totals
}

// UnitTotals is the per-unit entry, in units.Order.
type UnitTotals struct {
	Unit string `json:"unit"`
	Totals
}

// ReasonTotals is the per-failure-reason entry.
type ReasonTotals struct {
	Reason         string  `json:"reason"`
	RejectQuantity float64 `json:"rejectQuantity"`
	RejectCost     float64 `json:"rejectCost"`
}

// Result is the output of one aggregation pass.
type Result struct {
	Global    Totals          `json:"global"`
	ByMachine []MachineTotals `json:"byMachine"`
	ByUnit    []UnitTotals    `json:"byUnit"`
	ByReason  []ReasonTotals  `json:"byReason"`
}

// Policy names the behaviors the legacy variants disagreed on.
type Policy struct {
	// IncludeZeroRejectProduction keeps production and revenue from rows
	// without rejects in the totals. Required for a meaningful
	// non-conformity rate denominator; false reproduces the legacy variant
	// that only saw reject rows.
	IncludeZeroRejectProduction bool
}

// DefaultPolicy matches the variant that computes a meaningful rate.
func DefaultPolicy() Policy {
	return Policy{IncludeZeroRejectProduction: true}
}

// Classifier maps a machine id to a unit id, units.Unknown for none.
type Classifier func(machineID string) string

// Run folds records in a single pass. Production quantities may be negative
// (reporting corrections); they contribute signed, net values. Unknown-unit
// machines stay in global and per-machine totals but not in any unit bucket.
func Run(records []ingest.Record, classify Classifier, pol Policy) Result {
	if classify == nil {
		classify = units.Classify
	}

	var global Totals
	byMachine := make(map[string]*Totals)
	byUnit := make(map[string]*Totals)
	byReason := make(map[string]*ReasonTotals)

	for _, rec := range records {
		unit := classify(rec.Machine)
		hasReject := rec.RejectQty > 0

		if pol.IncludeZeroRejectProduction || hasReject {
			revenue := rec.ProductionQty * rec.UnitPrice
			global.ProductionQuantity += rec.ProductionQty
			global.Revenue += revenue
			m := bucket(byMachine, rec.Machine)
			m.ProductionQuantity += rec.ProductionQty
			m.Revenue += revenue
			if unit != units.Unknown {
				u := bucket(byUnit, unit)
				u.ProductionQuantity += rec.ProductionQty
				u.Revenue += revenue
			}
		}

		if !hasReject {
			continue
		}
		cost := rec.RejectQty * rec.UnitPrice
		global.RejectQuantity += rec.RejectQty
		global.RejectCost += cost
		m := bucket(byMachine, rec.Machine)
		m.RejectQuantity += rec.RejectQty
		m.RejectCost += cost
		if unit != units.Unknown {
			u := bucket(byUnit, unit)
			u.RejectQuantity += rec.RejectQty
			u.RejectCost += cost
		}
		r, ok := byReason[rec.Reason]
		if !ok {
			r = &ReasonTotals{Reason: rec.Reason}
			byReason[rec.Reason] = r
		}
		r.RejectQuantity += rec.RejectQty
		r.RejectCost += cost
	}

	res := Result{Global: derive(global)}

	for machine, t := range byMachine {
		res.ByMachine = append(res.ByMachine, MachineTotals{Machine: machine, Totals: derive(*t)})
	}
	sort.Slice(res.ByMachine, func(i, j int) bool {
		a, b := res.ByMachine[i], res.ByMachine[j]
		if a.RejectCost != b.RejectCost {
			return a.RejectCost > b.RejectCost
		}
		return a.Machine < b.Machine
	})

	for _, unit := range units.Order {
		t, ok := byUnit[unit]
		if !ok {
			continue
		}
		res.ByUnit = append(res.ByUnit, UnitTotals{Unit: unit, Totals: derive(*t)})
	}

	for _, r := range byReason {
		res.ByReason = append(res.ByReason, *r)
	}
	sort.Slice(res.ByReason, func(i, j int) bool {
		a, b := res.ByReason[i], res.ByReason[j]
		if a.RejectCost != b.RejectCost {
			return a.RejectCost > b.RejectCost
		}
		return a.Reason < b.Reason
	})

	return res
}

func bucket(m map[string]*Totals, key string) *Totals {
	t, ok := m[key]
	if !ok {
		t = &Totals{}
		m[key] = t
	}
	return t
}

// derive fills the computed fields. The rate is rejects/(rejects+production)
// rather than rejects/production so sparse production reporting still yields
// a defined value; it is clamped to [0,1] because negative production
// corrections can shrink the denominator below the reject quantity.
func derive(t Totals) Totals {
	if denom := t.RejectQuantity + t.ProductionQuantity; denom > 0 {
		t.NonConformityRate = t.RejectQuantity / denom
		if t.NonConformityRate > 1 {
			t.NonConformityRate = 1
		}
		if t.NonConformityRate < 0 {
			t.NonConformityRate = 0
		}
	}
	if t.RejectQuantity > 0 {
		t.WeightedAvgUnitCost = t.RejectCost / t.RejectQuantity
	}
	return t
}
