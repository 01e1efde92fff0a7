package formatter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hacknation/dataset-announcer/internal/models"
)

// Default announcement formats
const (
	DefaultNewFormat     = "New dataset available: {title} ({resources} resources) {url}"
	DefaultUpdatedFormat = "The dataset {title} has been updated ({resources} resources) {url}"
	DefaultMaxLength     = 280
)

const ellipsis = "…"

// DatasetShower fetches dataset snapshots
type DatasetShower interface {
	Show(ctx context.Context, idOrName string) (*models.DatasetSnapshot, error)
}

// AnnouncementFormatter renders announcement text for datasets
type AnnouncementFormatter struct {
	catalog       DatasetShower
	siteURL       string
	newFormat     string
	updatedFormat string
	maxLength     int
}

// NewAnnouncementFormatter creates a new announcement formatter. Empty formats
// and a non-positive maxLength fall back to the defaults.
func NewAnnouncementFormatter(catalog DatasetShower, siteURL, newFormat, updatedFormat string, maxLength int) *AnnouncementFormatter {
	if newFormat == "" {
		newFormat = DefaultNewFormat
	}
	if updatedFormat == "" {
		updatedFormat = DefaultUpdatedFormat
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &AnnouncementFormatter{
		catalog:       catalog,
		siteURL:       strings.TrimRight(siteURL, "/"),
		newFormat:     newFormat,
		updatedFormat: updatedFormat,
		maxLength:     maxLength,
	}
}

// GenerateAnnouncement fetches the dataset and renders the new or updated format
func (f *AnnouncementFormatter) GenerateAnnouncement(ctx context.Context, datasetID string, isNew bool) (string, error) {
	dataset, err := f.catalog.Show(ctx, datasetID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch dataset %s: %w", datasetID, err)
	}

	format := f.updatedFormat
	if isNew {
		format = f.newFormat
	}

	return f.Format(format, dataset), nil
}

// Format fills the placeholders of format with dataset values. The title is
// shortened when the text would exceed the maximum length.
func (f *AnnouncementFormatter) Format(format string, dataset *models.DatasetSnapshot) string {
	title := dataset.Title
	if title == "" {
		title = dataset.Name
	}

	render := func(title string) string {
		return strings.NewReplacer(
			"{title}", title,
			"{url}", f.datasetURL(dataset),
			"{resources}", strconv.Itoa(countActive(dataset.Resources)),
		).Replace(format)
	}

	text := render(title)
	overflow := utf8.RuneCountInString(text) - f.maxLength
	if overflow <= 0 {
		return text
	}

	titleRunes := []rune(title)
	keep := len(titleRunes) - overflow - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	text = render(string(titleRunes[:keep]) + ellipsis)

	// the title alone could not absorb the overflow
	if runes := []rune(text); len(runes) > f.maxLength {
		text = string(runes[:f.maxLength])
	}
	return text
}

func (f *AnnouncementFormatter) datasetURL(dataset *models.DatasetSnapshot) string {
	slug := dataset.Name
	if slug == "" {
		slug = dataset.ID
	}
	return fmt.Sprintf("%s/dataset/%s", f.siteURL, slug)
}

func countActive(resources []models.ResourceSnapshot) int {
	n := 0
	for _, r := range resources {
		if r.State == models.StateActive {
			n++
		}
	}
	return n
}
