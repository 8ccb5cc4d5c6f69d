package config

import (
	"fmt"
	"os"
	"strings"

	"driverdesk/internal/domain/models"

	"gopkg.in/yaml.v3"
)

type routesFile struct {
	Routes []models.Route `yaml:"routes"`
}

// LoadRoutes reads the route catalogue from a YAML file. An empty path returns
// DefaultRoutes.
func LoadRoutes(path string) ([]models.Route, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRoutes(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return ParseRoutes(raw)
}

// ParseRoutes decodes and validates a YAML route catalogue.
func ParseRoutes(raw []byte) ([]models.Route, error) {
	var f routesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	if len(f.Routes) == 0 {
		return nil, fmt.Errorf("routes file has no routes")
	}
	seen := map[string]bool{}
	for i, r := range f.Routes {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return nil, fmt.Errorf("route #%d: id is required", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("route %s: duplicate id", id)
		}
		seen[id] = true
		if len(r.Stops) < 2 {
			return nil, fmt.Errorf("route %s: needs at least two stops", id)
		}
		stopIDs := map[int]bool{}
		for _, s := range r.Stops {
			if stopIDs[s.ID] {
				return nil, fmt.Errorf("route %s: duplicate stop id %d", id, s.ID)
			}
			stopIDs[s.ID] = true
		}
		f.Routes[i].ID = id
		if f.Routes[i].Start == "" {
			f.Routes[i].Start = r.Stops[0].Name
		}
		if f.Routes[i].End == "" {
			f.Routes[i].End = r.Stops[len(r.Stops)-1].Name
		}
	}
	return f.Routes, nil
}

// DefaultRoutes is the built-in catalogue used when no routes file is configured.
func DefaultRoutes() []models.Route {
	return []models.Route{
		{
			ID: "247", Start: "Center", End: "Station", WalkupFare: 320, FarePerStop: 100,
			Stops: []models.Stop{
				{ID: 0, Name: "Center", Time: "14:00"},
				{ID: 1, Name: "Lenina St.", Time: "14:15"},
				{ID: 2, Name: "Galereya Mall", Time: "14:45"},
				{ID: 3, Name: "Station", Time: "15:15"},
			},
		},
		{
			ID: "248", Start: "Airport", End: "University", WalkupFare: 400, FarePerStop: 120,
			Stops: []models.Stop{
				{ID: 0, Name: "Airport", Time: "10:00"},
				{ID: 1, Name: "Revolution Sq.", Time: "10:20"},
				{ID: 2, Name: "Pobedy Ave.", Time: "10:40"},
				{ID: 3, Name: "University", Time: "11:00"},
			},
		},
		{
			ID: "249", Start: "Market", End: "Hospital", WalkupFare: 250, FarePerStop: 80,
			Stops: []models.Stop{
				{ID: 0, Name: "Market", Time: "08:00"},
				{ID: 1, Name: "Mira St.", Time: "08:20"},
				{ID: 2, Name: "Park", Time: "08:40"},
				{ID: 3, Name: "Hospital", Time: "09:00"},
			},
		},
	}
}
