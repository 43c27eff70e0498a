// Package plan computes the residual work of a run from the requested inputs
// and the identities already present in the sink.
package plan

import (
	"github.com/jdziat/bulk-mapper/pkg/core"
)

// Plan splits inputs into the items to process and the items to skip.
//
// With force set every input is processed again, producing additional sink
// rows next to the old ones. Otherwise inputs whose identity is in existing
// are skipped. Input order is preserved and duplicates within inputs stay
// separate units of work.
func Plan(inputs []core.WorkItem, existing core.Set, force bool) core.RunPlan {
	p := core.RunPlan{ToProcess: make([]core.WorkItem, 0, len(inputs))}
	for _, item := range inputs {
		if !force && existing.Has(item.ID()) {
			p.Skipped = append(p.Skipped, item)
			continue
		}
		p.ToProcess = append(p.ToProcess, item)
	}
	return p
}

// Batches cuts items into dispatch units of at most size items. A unit only
// holds consecutive items sharing the same hint, since a request carries a
// single hint.
func Batches(items []core.WorkItem, size int) []core.Unit {
	if size < 1 {
		size = 1
	}

	var units []core.Unit
	var cur []core.WorkItem
	flush := func() {
		if len(cur) == 0 {
			return
		}
		units = append(units, core.Unit{Index: len(units), Items: cur})
		cur = nil
	}

	for _, item := range items {
		if len(cur) == size || (len(cur) > 0 && cur[0].Hint != item.Hint) {
			flush()
		}
		cur = append(cur, item)
	}
	flush()
	return units
}
