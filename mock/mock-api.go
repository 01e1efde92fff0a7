package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hacknation/dataset-announcer/internal/models"
)

// catalog is an in-memory stand-in for the CKAN action API
type catalog struct {
	mu         sync.Mutex
	datasets   map[string]*models.DatasetSnapshot
	activities map[string][]models.ActivityRecord
}

func (c *catalog) find(idOrName string) *models.DatasetSnapshot {
	if d, ok := c.datasets[idOrName]; ok {
		return d
	}
	for _, d := range c.datasets {
		if d.Name == idOrName {
			return d
		}
	}
	return nil
}

func (c *catalog) record(datasetID, activityType string) {
	c.activities[datasetID] = append(c.activities[datasetID], models.ActivityRecord{
		"id":            uuid.New().String(),
		"activity_type": activityType,
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

func main() {
	c := &catalog{
		datasets:   make(map[string]*models.DatasetSnapshot),
		activities: make(map[string][]models.ActivityRecord),
	}

	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/api/3/action/package_show", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		dataset := c.find(r.URL.Query().Get("id"))
		if dataset == nil {
			notFound(w)
			return
		}
		success(w, dataset)
	}).Methods("GET")

	r.HandleFunc("/api/3/action/package_activity_list", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		dataset := c.find(r.URL.Query().Get("id"))
		if dataset == nil {
			notFound(w)
			return
		}
		// newest first, like CKAN
		activities := c.activities[dataset.ID]
		result := make([]models.ActivityRecord, 0, len(activities))
		for i := len(activities) - 1; i >= 0; i-- {
			result = append(result, activities[i])
		}
		success(w, result)
	}).Methods("GET")

	r.HandleFunc("/api/3/action/package_create", func(w http.ResponseWriter, r *http.Request) {
		var dataset models.DatasetSnapshot
		if err := json.NewDecoder(r.Body).Decode(&dataset); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		dataset.ID = uuid.New().String()
		if dataset.State == "" {
			dataset.State = models.StateActive
		}
		for i := range dataset.Resources {
			dataset.Resources[i].ID = uuid.New().String()
			if dataset.Resources[i].State == "" {
				dataset.Resources[i].State = models.StateActive
			}
		}
		c.datasets[dataset.ID] = &dataset
		c.record(dataset.ID, "new package")

		log.Printf("Dataset created: %s - %s", dataset.ID, dataset.Title)
		success(w, &dataset)
	}).Methods("POST")

	r.HandleFunc("/api/3/action/resource_create", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PackageID string `json:"package_id"`
			Name      string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		dataset := c.find(req.PackageID)
		if dataset == nil {
			notFound(w)
			return
		}
		resource := models.ResourceSnapshot{ID: uuid.New().String(), Name: req.Name, State: models.StateActive}
		dataset.Resources = append(dataset.Resources, resource)
		c.record(dataset.ID, "changed package")

		log.Printf("Resource %s added to dataset %s", resource.ID, dataset.ID)
		success(w, resource)
	}).Methods("POST")

	log.Println("Mock catalog API server starting on :5000")
	log.Println("Health check: http://localhost:5000/health")
	log.Println("API endpoint: http://localhost:5000/api/3/action/package_show?id=...")
	log.Fatal(http.ListenAndServe(":5000", r))
}

func success(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"__type":  "Not Found Error",
			"message": "Not found",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
