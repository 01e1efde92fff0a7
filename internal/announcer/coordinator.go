package announcer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-announcer/internal/catalog"
	"github.com/hacknation/dataset-announcer/internal/eligibility"
	"github.com/hacknation/dataset-announcer/internal/models"
)

// ReadyFlagKey is the session key the update hook stores a ready dataset id under
const ReadyFlagKey = "announcement_is_suitable"

// FirstActivityThreshold is the largest activity count for which a dataset is
// still announced as new. It is a policy value, not derived from anything.
const FirstActivityThreshold = 3

// Catalog reads dataset records from the catalog
type Catalog interface {
	Show(ctx context.Context, idOrName string) (*models.DatasetSnapshot, error)
	ActivityList(ctx context.Context, idOrName string) ([]models.ActivityRecord, error)
}

// FlagStore is the session store holding the one-shot ready flag
type FlagStore interface {
	Pop(key, defaultValue string) string
}

// FlagSetter is a FlagStore the update hook can write to
type FlagSetter interface {
	FlagStore
	Set(key, value string)
}

// TextGenerator renders the announcement text of a dataset
type TextGenerator interface {
	GenerateAnnouncement(ctx context.Context, datasetID string, isNew bool) (string, error)
}

// Announcement is the outcome of a completed announcement cycle
type Announcement struct {
	DatasetID string
	Text      string
	IsNew     bool
}

// Coordinator decides whether datasets are announced and composes the text
type Coordinator struct {
	catalog   Catalog
	generator TextGenerator
}

// NewCoordinator creates a new announcement coordinator
func NewCoordinator(source Catalog, generator TextGenerator) *Coordinator {
	return &Coordinator{
		catalog:   source,
		generator: generator,
	}
}

// FetchSnapshot returns the current catalog record of a dataset
func (c *Coordinator) FetchSnapshot(ctx context.Context, idOrName string) (*models.DatasetSnapshot, error) {
	return c.catalog.Show(ctx, idOrName)
}

// CheckSuitable reports whether the dataset can be announced. A non-nil
// snapshot is used as is instead of asking the catalog. Datasets unknown to the
// catalog are not suitable; any other catalog failure is returned.
func (c *Coordinator) CheckSuitable(ctx context.Context, datasetID string, snapshot *models.DatasetSnapshot) (bool, error) {
	dataset := snapshot
	if dataset == nil {
		var err error
		dataset, err = c.FetchSnapshot(ctx, datasetID)
		if errors.Is(err, catalog.ErrNotFound) {
			log.Debug().
				Str("dataset_id", datasetID).
				Msg("Dataset not found in catalog, not suitable")
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to fetch dataset %s: %w", datasetID, err)
		}
	}

	return eligibility.IsEligible(dataset), nil
}

// ConsumeReadyFlag pops the ready flag from the session and reports whether it
// named datasetID. The flag is cleared even when it names another dataset.
// An empty datasetID never matches, also when no flag is stored.
func (c *Coordinator) ConsumeReadyFlag(store FlagStore, datasetID string) bool {
	return store.Pop(ReadyFlagKey, "") == datasetID && datasetID != ""
}

// IsFirstActivity reports whether the dataset has so little recorded activity
// that it still counts as new.
func (c *Coordinator) IsFirstActivity(ctx context.Context, datasetID string) (bool, error) {
	activities, err := c.catalog.ActivityList(ctx, datasetID)
	if err != nil {
		return false, fmt.Errorf("failed to list activity of dataset %s: %w", datasetID, err)
	}
	return len(activities) <= FirstActivityThreshold, nil
}

// ComposeAnnouncement generates the announcement text for the dataset
func (c *Coordinator) ComposeAnnouncement(ctx context.Context, datasetID string) (string, error) {
	announcement, err := c.compose(ctx, datasetID)
	if err != nil {
		return "", err
	}
	return announcement.Text, nil
}

func (c *Coordinator) compose(ctx context.Context, datasetID string) (*Announcement, error) {
	isNew, err := c.IsFirstActivity(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	text, err := c.generator.GenerateAnnouncement(ctx, datasetID, isNew)
	if err != nil {
		return nil, fmt.Errorf("failed to generate announcement for dataset %s: %w", datasetID, err)
	}

	return &Announcement{DatasetID: datasetID, Text: text, IsNew: isNew}, nil
}

// MarkIfSuitable is the update hook: it flags the dataset as ready in the
// session when it is suitable. It reports whether the flag was set.
func (c *Coordinator) MarkIfSuitable(ctx context.Context, store FlagSetter, datasetID string) (bool, error) {
	suitable, err := c.CheckSuitable(ctx, datasetID, nil)
	if err != nil {
		return false, err
	}
	if !suitable {
		log.Debug().
			Str("dataset_id", datasetID).
			Msg("Dataset not suitable for announcement")
		return false, nil
	}

	store.Set(ReadyFlagKey, datasetID)
	log.Info().
		Str("dataset_id", datasetID).
		Msg("Dataset flagged as ready for announcement")
	return true, nil
}

// Announce runs the announcement cycle for a dataset: it consumes the ready
// flag, re-checks suitability and composes the text. A nil announcement with a
// nil error means nothing is to be announced.
func (c *Coordinator) Announce(ctx context.Context, store FlagStore, datasetID string) (*Announcement, error) {
	if !c.ConsumeReadyFlag(store, datasetID) {
		log.Debug().
			Str("dataset_id", datasetID).
			Msg("Dataset not flagged as ready")
		return nil, nil
	}

	suitable, err := c.CheckSuitable(ctx, datasetID, nil)
	if err != nil {
		return nil, err
	}
	if !suitable {
		log.Info().
			Str("dataset_id", datasetID).
			Msg("Dataset flagged but no longer suitable")
		return nil, nil
	}

	announcement, err := c.compose(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("dataset_id", datasetID).
		Bool("is_new", announcement.IsNew).
		Msg("Announcement composed")
	return announcement, nil
}
