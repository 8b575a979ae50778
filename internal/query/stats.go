package query

import "materiel-inventory-api/internal/model"

// ComputeStats counts the records of a view.
func ComputeStats(view []model.Record) model.Stats {
	stats := model.Stats{Total: len(view)}
	for _, r := range view {
		switch r.Status {
		case model.StatusActive:
			stats.Active++
		case "":
			stats.Undefined++
		}
	}
	return stats
}
