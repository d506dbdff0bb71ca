// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package table

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/threeones/services/finder/catalogue"
	"github.com/AleutianAI/threeones/services/finder/oracle"
	"github.com/AleutianAI/threeones/services/finder/position"
)

// maxViolations bounds the size of a Validate error.
const maxViolations = 16

// Validate checks every entry against the consistency oracle:
//
//   - terminal entries sit on determined positions and carry a witness
//     that fits the position and accounts for every missing one;
//   - decision entries name an applicable comparison, every legal outcome
//     of it has an entry, and the entry's value is one more than the worst
//     of those children.
//
// Since every entry is checked locally, any position an executor can reach
// from the start has an entry when Validate returns nil. Violations are
// joined into a single error wrapping ErrInvalidTable.
func (t *Table) Validate(o *oracle.Oracle) error {
	if o == nil {
		o = oracle.New()
	}
	var errs []error
	report := func(p position.Position, format string, args ...any) bool {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidTable, p, fmt.Sprintf(format, args...)))
		return len(errs) < maxViolations
	}

	if _, ok := t.Lookup(position.Start(t.n)); !ok {
		return ErrMissingStart
	}

	t.Each(func(p position.Position, e Entry) bool {
		if p.Total() != t.n {
			return report(p, "describes %d elements, want %d", p.Total(), t.n)
		}
		if !o.Legal(p) {
			return report(p, "no consistent assignment")
		}
		if e.Terminal() {
			return t.checkTerminal(o, p, e, report)
		}
		return t.checkDecision(o, p, e, report)
	})
	return errors.Join(errs...)
}

type reporter func(p position.Position, format string, args ...any) bool

func (t *Table) checkTerminal(o *oracle.Oracle, p position.Position, e Entry, report reporter) bool {
	if !o.Determined(p) {
		return report(p, "terminal entry on an undetermined position")
	}
	w := e.Witness
	if w.Zero != 0 || w.One != 0 || !p.Covers(w) {
		return report(p, "witness %s does not fit", w)
	}
	if w.U2%2 != 0 || w.U3%3 != 0 {
		return report(p, "witness %s splits a class", w)
	}
	if w.Sum() != p.Remaining() {
		return report(p, "witness %s names %d ones, want %d", w, w.Sum(), p.Remaining())
	}
	return true
}

func (t *Table) checkDecision(o *oracle.Oracle, p position.Position, e Entry, report reporter) bool {
	if o.Determined(p) {
		return report(p, "decision entry on a determined position")
	}
	if e.Comparison < 0 || int(e.Comparison) >= catalogue.Len() {
		return report(p, "unknown comparison %d", e.Comparison)
	}
	c := catalogue.Get(e.Comparison)
	if !c.Applicable(p) {
		return report(p, "comparison %s not applicable", c.Name)
	}
	worst := -1
	for _, out := range c.Outcomes {
		child := p.Add(out.Delta)
		if !child.Valid() || !o.Legal(child) {
			continue
		}
		ce, ok := t.Lookup(child)
		if !ok {
			return report(p, "outcome %d of %s leads to %s with no entry", out.Result, c.Name, child)
		}
		worst = max(worst, ce.Value)
	}
	if worst < 0 {
		return report(p, "comparison %s has no legal outcome", c.Name)
	}
	if e.Value != worst+1 {
		return report(p, "value %d, want %d from worst outcome", e.Value, worst+1)
	}
	return true
}
