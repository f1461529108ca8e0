package sector

import "github.com/rendis/sectorscan/internal/model"

// PageSize approximates the provider's results per page. A query returning
// at least this many places is assumed to be truncated.
const PageSize = 20

// Decide returns the action for a sector whose first page held count places
// and whose query radius was radiusM.
func Decide(count int, radiusM, minRadiusM float64) model.Action {
	switch {
	case count < PageSize:
		return model.ActionSave
	case radiusM > minRadiusM:
		return model.ActionSplit
	default:
		return model.ActionSaveDense
	}
}

// Credits returns the API credits billed for an action.
func Credits(a model.Action) int {
	if a == model.ActionSaveDense {
		return 3
	}
	return 1
}
