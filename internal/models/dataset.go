package models

// Catalog states shared by datasets and resources
const (
	StateActive  = "active"
	StateDraft   = "draft"
	StateDeleted = "deleted"
)

// DatasetSnapshot is a read-only view of a catalog dataset at decision time.
// Fields missing from the catalog payload keep their zero values.
type DatasetSnapshot struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Title     string             `json:"title"`
	State     string             `json:"state"`
	Private   bool               `json:"private"`
	Resources []ResourceSnapshot `json:"resources"`
}

// ResourceSnapshot represents a single resource attached to a dataset
type ResourceSnapshot struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// ActivityRecord is an opaque catalog activity entry. Only the number of
// records matters to the announcer.
type ActivityRecord map[string]interface{}
