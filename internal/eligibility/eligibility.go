package eligibility

import (
	"github.com/hacknation/dataset-announcer/internal/models"
)

// IsEligible reports whether a dataset may be announced at all: it must be
// active or draft, public, and carry at least one active resource.
func IsEligible(dataset *models.DatasetSnapshot) bool {
	if dataset == nil {
		return false
	}

	if dataset.State != models.StateActive && dataset.State != models.StateDraft {
		return false
	}

	if len(dataset.Resources) == 0 {
		return false
	}

	if !hasActiveResource(dataset.Resources) {
		return false
	}

	return !dataset.Private
}

func hasActiveResource(resources []models.ResourceSnapshot) bool {
	for _, r := range resources {
		if r.State == models.StateActive {
			return true
		}
	}
	return false
}
