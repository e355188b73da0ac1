package core

import "sort"

// Stats summarizes one year's worth of gifts.
//
// MostExpensiveGift ranges over every valid-priced gift, bought or idea: it
// answers "what is the priciest thing under consideration". CheapestGift
// ranges over bought gifts only: "what is the least we ever actually spent".
// The asymmetry is deliberate and load-bearing for the summary views.
type Stats struct {
	TotalItems        int    `json:"totalItems"`
	BoughtTotal       int64  `json:"boughtTotal"`
	IdeaTotal         int64  `json:"ideaTotal"`
	IdeaMissingCount  int    `json:"ideaMissingCount"`
	BoughtCount       int    `json:"boughtCount"`
	MostExpensiveGift *int64 `json:"mostExpensiveGift"`
	CheapestGift      *int64 `json:"cheapestGift"`
}

// YearTotal is one point of the year-over-year spending trend.
type YearTotal struct {
	Year  int   `json:"year"`
	Total int64 `json:"total"`
}

// PersonStat aggregates gifts per recipient.
type PersonStat struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	BoughtTotal int64  `json:"boughtTotal"`
	PlanTotal   int64  `json:"planTotal"`
}

// YearStats computes the per-year summary over gifts already filtered to a
// single year. Bought gifts without a valid price should not exist, but the
// aggregation does not trust the invariant and skips them.
func YearStats(gifts []Gift) Stats {
	s := Stats{TotalItems: len(gifts)}
	for _, g := range gifts {
		priced := ValidPrice(g.Price)
		if priced {
			if s.MostExpensiveGift == nil || *g.Price > *s.MostExpensiveGift {
				v := *g.Price
				s.MostExpensiveGift = &v
			}
		}
		switch g.Status {
		case StatusBought:
			if !priced {
				continue
			}
			s.BoughtTotal += *g.Price
			s.BoughtCount++
			if s.CheapestGift == nil || *g.Price < *s.CheapestGift {
				v := *g.Price
				s.CheapestGift = &v
			}
		case StatusIdea:
			if priced {
				s.IdeaTotal += *g.Price
			} else {
				s.IdeaMissingCount++
			}
		}
	}
	return s
}

// AverageBoughtPrice returns the mean bought price, or false when nothing
// was bought.
func (s Stats) AverageBoughtPrice() (float64, bool) {
	if s.BoughtCount == 0 {
		return 0, false
	}
	return float64(s.BoughtTotal) / float64(s.BoughtCount), true
}

// PlanTotal is bought plus priced-idea spend.
func (s Stats) PlanTotal() int64 {
	return s.BoughtTotal + s.IdeaTotal
}

// SpentTotalForYear sums valid-priced bought gifts for one year across the
// whole collection. A year with no matching gifts yields 0; whether the year
// exists at all is the caller's concern.
func SpentTotalForYear(gifts []Gift, year int) int64 {
	var total int64
	for _, g := range gifts {
		if g.Year != year || g.Status != StatusBought || !ValidPrice(g.Price) {
			continue
		}
		total += *g.Price
	}
	return total
}

// YearlyTotals builds the spending trend series, ascending by year. Years
// whose bought total is zero are omitted entirely rather than zero-filled,
// so a year holding only unpurchased ideas never appears.
func YearlyTotals(gifts []Gift) []YearTotal {
	byYear := make(map[int]int64)
	for _, g := range gifts {
		if g.Status != StatusBought || !ValidPrice(g.Price) {
			continue
		}
		byYear[g.Year] += *g.Price
	}
	out := make([]YearTotal, 0, len(byYear))
	for year, total := range byYear {
		out = append(out, YearTotal{Year: year, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// PersonTotals aggregates gift count and spend per recipient, sorted by
// name. Unpriced gifts count toward Count only.
func PersonTotals(gifts []Gift) []PersonStat {
	byName := make(map[string]*PersonStat)
	for _, g := range gifts {
		st, ok := byName[g.Name]
		if !ok {
			st = &PersonStat{Name: g.Name}
			byName[g.Name] = st
		}
		st.Count++
		if !ValidPrice(g.Price) {
			continue
		}
		st.PlanTotal += *g.Price
		if g.Status == StatusBought {
			st.BoughtTotal += *g.Price
		}
	}
	out := make([]PersonStat, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
