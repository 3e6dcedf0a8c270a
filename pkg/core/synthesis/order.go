package synthesis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"statement_stitch/pkg/models"
)

// Order decides the sequence in which filings are folded. The first filing
// folded owns the canonical metric names.
type Order int

const (
	// OrderNewestFirst folds the most recent filing first.
	OrderNewestFirst Order = iota
	// OrderOldestFirst folds the oldest filing first.
	OrderOldestFirst
	// OrderExplicit folds filings in a caller supplied list, which is read
	// as newest first. Unlisted filings follow in newest-first order.
	OrderExplicit
)

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case OrderOldestFirst:
		return "oldest_first"
	case OrderExplicit:
		return "explicit"
	}
	return "newest_first"
}

// ParseOrder parses the names produced by String. An empty string is
// OrderNewestFirst.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "newest_first", "newest":
		return OrderNewestFirst, nil
	case "oldest_first", "oldest":
		return OrderOldestFirst, nil
	case "explicit":
		return OrderExplicit, nil
	}
	return OrderNewestFirst, fmt.Errorf("unknown filing order %q", s)
}

// FilingKey carries what ordering needs to know about a filing.
type FilingKey struct {
	ID          string
	FiledAt     time.Time
	PeriodLabel string
	Position    int // input position
}

func (k FilingKey) periodYear() int {
	p, _ := models.ParsePeriodLabel(k.PeriodLabel)
	return p.Year
}

// Ranked is a filing key with its recency rank. Higher is more recent.
type Ranked struct {
	FilingKey
	Recency int
}

// newer reports whether a is more recent than b by filing date, then period
// label year. Equal keys are neither.
func newer(a, b FilingKey) bool {
	if !a.FiledAt.Equal(b.FiledAt) {
		return a.FiledAt.After(b.FiledAt)
	}
	return a.periodYear() > b.periodYear()
}

// Arrange returns keys in fold order with recency ranks assigned. Ties keep
// input order.
func Arrange(keys []FilingKey, order Order, explicit []string) []Ranked {
	chrono := make([]FilingKey, len(keys))
	copy(chrono, keys)
	// newest first
	sort.SliceStable(chrono, func(i, j int) bool {
		return newer(chrono[i], chrono[j])
	})

	switch order {
	case OrderOldestFirst:
		sort.SliceStable(chrono, func(i, j int) bool {
			return newer(chrono[j], chrono[i])
		})
		out := make([]Ranked, len(chrono))
		for i, k := range chrono {
			out[i] = Ranked{FilingKey: k, Recency: i + 1}
		}
		return out

	case OrderExplicit:
		listed := make(map[string]int, len(explicit))
		for i, id := range explicit {
			if _, dup := listed[id]; !dup {
				listed[id] = i
			}
		}
		var head, tail []FilingKey
		for _, k := range chrono {
			if _, ok := listed[k.ID]; ok {
				head = append(head, k)
			} else {
				tail = append(tail, k)
			}
		}
		sort.SliceStable(head, func(i, j int) bool {
			return listed[head[i].ID] < listed[head[j].ID]
		})
		chrono = append(head, tail...)
	}

	out := make([]Ranked, len(chrono))
	for i, k := range chrono {
		out[i] = Ranked{FilingKey: k, Recency: len(chrono) - i}
	}
	return out
}
