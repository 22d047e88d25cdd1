package availability

import "appt-service/internal/models"

// Reconcile maps a previously known selection onto a fresh list of windows.
// It keeps previous when an equal window is offered, falls back to the first
// window otherwise, and reports false when nothing is offered.
func Reconcile(available []models.TimeWindow, previous *models.TimeWindow) (models.TimeWindow, bool) {
	if len(available) == 0 {
		return models.TimeWindow{}, false
	}

	if previous != nil {
		for _, w := range available {
			if w == *previous {
				return w, true
			}
		}
	}

	return available[0], true
}

// Contains reports whether w is one of windows.
func Contains(windows []models.TimeWindow, w models.TimeWindow) bool {
	for _, candidate := range windows {
		if candidate == w {
			return true
		}
	}
	return false
}
