package consumer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-announcer/internal/announcer"
	"github.com/hacknation/dataset-announcer/internal/catalog"
	"github.com/hacknation/dataset-announcer/internal/models"
	"github.com/hacknation/dataset-announcer/internal/session"
)

// AnnouncementPublisher forwards composed announcements
type AnnouncementPublisher interface {
	PublishAnnounced(ctx context.Context, event *models.DatasetAnnouncedEvent) error
}

// EventHandler routes dataset events to the update hook or the announcement cycle
type EventHandler struct {
	coordinator *announcer.Coordinator
	sessions    *session.Registry
	publisher   AnnouncementPublisher
}

// NewEventHandler creates a new dataset event handler
func NewEventHandler(coordinator *announcer.Coordinator, sessions *session.Registry, publisher AnnouncementPublisher) *EventHandler {
	return &EventHandler{
		coordinator: coordinator,
		sessions:    sessions,
		publisher:   publisher,
	}
}

// Handle processes one dataset event. It satisfies MessageHandler.
func (h *EventHandler) Handle(ctx context.Context, routingKey string, event *models.DatasetChangedEvent) error {
	// Events without a session get a store of their own that is never registered
	var store *session.MemoryStore
	if event.SessionID == "" {
		event.SessionID = uuid.New().String()
		store = session.NewMemoryStore()
	} else {
		store = h.sessions.Get(event.SessionID)
		defer h.sessions.Release(event.SessionID)
	}
	ctx = catalog.WithActionContext(ctx, catalog.ActionContext{User: event.User})

	logger := log.With().
		Str("dataset_id", event.DatasetID).
		Str("session_id", event.SessionID).
		Str("routing_key", routingKey).
		Logger()

	switch routingKey {
	case RoutingKeyUpdated:
		_, err := h.coordinator.MarkIfSuitable(ctx, store, event.DatasetID)
		return err

	case RoutingKeyViewed:
		// The flag is consumed before the catalog is asked, so a redelivered
		// view can never announce. Failures are logged and acked.
		announcement, err := h.coordinator.Announce(ctx, store, event.DatasetID)
		if err != nil {
			logger.Error().Err(err).Msg("Announcement failed, flag already consumed")
			return nil
		}
		if announcement == nil {
			return nil
		}

		published := &models.DatasetAnnouncedEvent{
			DatasetID:   announcement.DatasetID,
			SessionID:   event.SessionID,
			Text:        announcement.Text,
			IsNew:       announcement.IsNew,
			AnnouncedAt: time.Now(),
		}
		if err := h.publisher.PublishAnnounced(ctx, published); err != nil {
			logger.Error().Err(err).Msg("Failed to publish dataset.announced event")
		}
		return nil

	default:
		logger.Warn().Msg("Ignoring event with unknown routing key")
		return nil
	}
}
