package storage

import (
	"time"

	"darky/internal/core"
)

// Bundled demo data, used to seed a fresh store and as the fallback when a
// stored blob is missing or unreadable.

func price(v int64) *int64 { return &v }

// DemoGifts spans three years so the trend and year-over-year views have
// something to show out of the box.
func DemoGifts() []core.Gift {
	return []core.Gift{
		// 2025
		{ID: "2025-anna-1", Year: 2025, Name: "Anna", Description: "Noise-cancelling sluchátka", Price: price(4200), Status: core.StatusBought},
		{ID: "2025-jakub-1", Year: 2025, Name: "Jakub", Description: "Outdoorová výbava", Price: price(3200), Status: core.StatusBought},
		{ID: "2025-petra-1", Year: 2025, Name: "Petra", Description: "Workshop keramiky", Price: price(1800), Status: core.StatusIdea},
		{ID: "2025-martin-1", Year: 2025, Name: "Martin", Description: "Herní monitor", Price: price(6500), Status: core.StatusBought},
		{ID: "2025-lucie-1", Year: 2025, Name: "Lucie", Description: "Kurz baristy", Status: core.StatusIdea},
		{ID: "2025-tomas-1", Year: 2025, Name: "Tomáš", Description: "Kožená taška", Price: price(2500), Status: core.StatusBought},

		// 2024
		{ID: "2024-anna-1", Year: 2024, Name: "Anna", Description: "Designový parfém", Price: price(2200), Status: core.StatusBought},
		{ID: "2024-jakub-1", Year: 2024, Name: "Jakub", Description: "Zážitkový pobyt", Price: price(1800), Status: core.StatusBought},
		{ID: "2024-petra-1", Year: 2024, Name: "Petra", Description: "Kurz focení", Price: price(1200), Status: core.StatusBought},
		{ID: "2024-martin-1", Year: 2024, Name: "Martin", Description: "Elektrická bruska", Status: core.StatusIdea},
		{ID: "2024-eva-1", Year: 2024, Name: "Eva", Description: "Kuchyňský mixér", Price: price(1600), Status: core.StatusIdea},
		{ID: "2024-david-1", Year: 2024, Name: "David", Description: "Běžecké boty", Price: price(1800), Status: core.StatusBought},

		// 2023
		{ID: "2023-anna-1", Year: 2023, Name: "Anna", Description: "Šperkovnice", Price: price(780), Status: core.StatusBought},
		{ID: "2023-jakub-1", Year: 2023, Name: "Jakub", Description: "Fantasy kniha", Price: price(420), Status: core.StatusBought},
		{ID: "2023-petra-1", Year: 2023, Name: "Petra", Description: "Sportovní míč", Price: price(650), Status: core.StatusBought},
		{ID: "2023-martin-1", Year: 2023, Name: "Martin", Description: "Stylová peněženka", Price: price(920), Status: core.StatusBought},
		{ID: "2023-klara-1", Year: 2023, Name: "Klára", Description: "Bylinkové čaje", Price: price(390), Status: core.StatusBought},
		{ID: "2023-michal-1", Year: 2023, Name: "Michal", Description: "Ponožky z merina", Price: price(290), Status: core.StatusBought},
	}
}

func DemoBudgets() map[int]int64 {
	return map[int]int64{
		2026: 18000,
		2025: 16000,
		2024: 14000,
	}
}

func DemoExtraYears() []int { return nil }

// DemoNames derives the per-year name registry from the demo gifts; when the
// gifts carry no usable years it falls back to a default list for the
// current year.
func DemoNames(now time.Time) map[int][]string {
	names := NamesFromGifts(DemoGifts())
	if len(names) > 0 {
		return names
	}
	return map[int][]string{
		now.Year(): {"Anna", "Jakub", "Petra", "Martin", "Lucie", "Tomáš"},
	}
}

// NamesFromGifts rebuilds a per-year name registry from a gift collection,
// preserving first-seen order within each year.
func NamesFromGifts(gifts []core.Gift) map[int][]string {
	out := make(map[int][]string)
	seen := make(map[int]map[string]bool)
	for _, g := range gifts {
		if g.Year <= 0 || g.Name == "" {
			continue
		}
		if seen[g.Year] == nil {
			seen[g.Year] = make(map[string]bool)
		}
		if seen[g.Year][g.Name] {
			continue
		}
		seen[g.Year][g.Name] = true
		out[g.Year] = append(out[g.Year], g.Name)
	}
	return out
}
