package agent

import (
	"strings"

	"ledgerchat/dataset"
)

// isSupportedMetricRequest validates the requested metric against the
// profile's metric registry and actual column set. Empty or "unknown"
// expresses no constraint and is always eligible.
func isSupportedMetricRequest(entities *ExtractedEntities, profile *dataset.Profile) bool {
	requested := strings.ToLower(strings.TrimSpace(entities.RequestedMetric))
	if requested == "" || requested == "unknown" {
		return true
	}

	spec, ok := profile.SupportedMetrics[requested]
	if !ok {
		return false
	}

	columns := make(map[string]bool, len(profile.Columns))
	for _, column := range profile.Columns {
		columns[column] = true
	}
	for _, required := range spec.RequiredColumns {
		if !columns[required] {
			return false
		}
	}
	return true
}
