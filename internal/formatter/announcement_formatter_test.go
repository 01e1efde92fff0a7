package formatter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacknation/dataset-announcer/internal/models"
)

type stubCatalog struct {
	dataset *models.DatasetSnapshot
	err     error
}

func (s stubCatalog) Show(ctx context.Context, idOrName string) (*models.DatasetSnapshot, error) {
	return s.dataset, s.err
}

func busStops() *models.DatasetSnapshot {
	return &models.DatasetSnapshot{
		ID:    "abc",
		Name:  "bus-stops",
		Title: "Bus stops",
		Resources: []models.ResourceSnapshot{
			{State: models.StateActive},
			{State: models.StateDeleted},
			{State: models.StateActive},
		},
	}
}

func TestGenerateAnnouncement(t *testing.T) {
	f := NewAnnouncementFormatter(stubCatalog{dataset: busStops()}, "https://data.example.org/", "", "", 0)
	ctx := context.Background()

	text, err := f.GenerateAnnouncement(ctx, "abc", true)
	require.NoError(t, err)
	assert.Equal(t, "New dataset available: Bus stops (2 resources) https://data.example.org/dataset/bus-stops", text)

	text, err = f.GenerateAnnouncement(ctx, "abc", false)
	require.NoError(t, err)
	assert.Equal(t, "The dataset Bus stops has been updated (2 resources) https://data.example.org/dataset/bus-stops", text)
}

func TestGenerateAnnouncementCatalogError(t *testing.T) {
	f := NewAnnouncementFormatter(stubCatalog{err: errors.New("timeout")}, "https://data.example.org", "", "", 0)

	_, err := f.GenerateAnnouncement(context.Background(), "abc", true)
	assert.ErrorContains(t, err, "timeout")
}

func TestFormatFallsBackToName(t *testing.T) {
	f := NewAnnouncementFormatter(nil, "https://data.example.org", "", "", 0)
	dataset := &models.DatasetSnapshot{ID: "abc"}

	text := f.Format("{title} {url}", dataset)
	assert.Equal(t, " https://data.example.org/dataset/abc", text)

	dataset.Name = "bus-stops"
	text = f.Format("{title} {url}", dataset)
	assert.Equal(t, "bus-stops https://data.example.org/dataset/bus-stops", text)
}

func TestFormatTruncatesTitle(t *testing.T) {
	f := NewAnnouncementFormatter(nil, "https://d.org", "", "", 40)
	dataset := busStops()
	dataset.Title = strings.Repeat("ż", 60)

	text := f.Format("New: {title} {url}", dataset)

	assert.Equal(t, 40, utf8.RuneCountInString(text))
	assert.True(t, strings.HasPrefix(text, "New: ż"))
	assert.True(t, strings.HasSuffix(text, "… https://d.org/dataset/bus-stops"))
}

func TestFormatHardLimit(t *testing.T) {
	f := NewAnnouncementFormatter(nil, "https://d.org", "", "", 10)

	text := f.Format("A very long fixed prefix {title}", busStops())
	assert.Equal(t, 10, utf8.RuneCountInString(text))
}
