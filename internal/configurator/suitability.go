package configurator

import "github.com/r3e-labs/ruleengine/internal/asset"

// suitable applies the suitability predicates of §4.5 before a template is
// instantiated for an asset. All are keyed by template family name.
func suitable(family string, assetName string, db *asset.Database) bool {
	switch family {
	case "humidity.default", "temperature.default":
		// Base sensor templates are never instantiated directly; a more
		// specific template always supersedes them.
		return false
	case "voltage.input_1phase":
		return !db.HasMetric(assetName, "voltage.input.L2") && !db.HasMetric(assetName, "voltage.input.L3")
	case "voltage.input_3phase":
		return db.HasMetric(assetName, "voltage.input.L2") && db.HasMetric(assetName, "voltage.input.L3")
	case "load.input_1phase":
		return !db.HasMetric(assetName, "load.input.L2") && !db.HasMetric(assetName, "load.input.L3")
	case "load.input_3phase":
		return db.HasMetric(assetName, "load.input.L2") && db.HasMetric(assetName, "load.input.L3")
	case "phase_imbalance":
		return db.HasMetric(assetName, "realpower.output.L2") && db.HasMetric(assetName, "realpower.output.L3")
	default:
		return true
	}
}
