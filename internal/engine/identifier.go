package engine

import (
	"fmt"
	"time"
)

// Code is the two-letter category prefix of a display identifier.
type Code string

const (
	CodeCashOut    Code = "CO"
	CodeCashIn     Code = "CI"
	CodePayable    Code = "AP"
	CodeReceivable Code = "AR"
	CodeTransfer   Code = "TR"
	CodeCorrection Code = "BA"
)

type counterKey struct {
	Year  int
	Month time.Month
	Code  Code
}

// CounterState is the persisted sequence position of one monthly bucket.
type CounterState struct {
	Year  int
	Month time.Month
	Code  Code
	Seq   int
}

// identifierGenerator hands out display identifiers of the form
// "AP-25060012": category code, two-digit year and month, then a
// four-digit sequence scoped to that month's bucket.
// Sequences only ever move forward, so an identifier is never reissued
// even after the entry that consumed it is deleted.
type identifierGenerator struct {
	counters map[counterKey]int
	now      func() time.Time
}

func newIdentifierGenerator(now func() time.Time) *identifierGenerator {
	return &identifierGenerator{
		counters: make(map[counterKey]int),
		now:      now,
	}
}

func (g *identifierGenerator) next(code Code) (string, CounterState) {
	t := g.now()
	key := counterKey{Year: t.Year(), Month: t.Month(), Code: code}
	g.counters[key]++
	seq := g.counters[key]
	id := fmt.Sprintf("%s-%02d%02d%04d", code, t.Year()%100, int(t.Month()), seq)
	return id, CounterState{Year: key.Year, Month: key.Month, Code: code, Seq: seq}
}

// prune drops buckets older than retentionMonths and reports which ones
// were removed so callers can clear their durable copies too. The current
// month always survives.
func (g *identifierGenerator) prune(retentionMonths int) []CounterState {
	if retentionMonths <= 0 {
		retentionMonths = 12
	}
	t := g.now()
	cutoff := t.Year()*12 + int(t.Month()) - retentionMonths
	var removed []CounterState
	for key, seq := range g.counters {
		if key.Year*12+int(key.Month) <= cutoff {
			removed = append(removed, CounterState{Year: key.Year, Month: key.Month, Code: key.Code, Seq: seq})
			delete(g.counters, key)
		}
	}
	return removed
}

func (g *identifierGenerator) snapshot() []CounterState {
	states := make([]CounterState, 0, len(g.counters))
	for key, seq := range g.counters {
		states = append(states, CounterState{Year: key.Year, Month: key.Month, Code: key.Code, Seq: seq})
	}
	return states
}

func (g *identifierGenerator) restore(states []CounterState) {
	g.counters = make(map[counterKey]int, len(states))
	for _, state := range states {
		key := counterKey{Year: state.Year, Month: state.Month, Code: state.Code}
		if state.Seq > g.counters[key] {
			g.counters[key] = state.Seq
		}
	}
}
