package models

// Stop is one stop on a route. ID is stable regardless of direction.
type Stop struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Time string `json:"time" yaml:"time"`
}

// Route is a catalogue entry the driver can select while idle.
type Route struct {
	ID          string `json:"id" yaml:"id"`
	Start       string `json:"start" yaml:"start"`
	End         string `json:"end" yaml:"end"`
	Stops       []Stop `json:"stops" yaml:"stops"`
	WalkupFare  int64  `json:"walkup_fare" yaml:"walkup_fare"`
	FarePerStop int64  `json:"fare_per_stop" yaml:"fare_per_stop"`
}

// HasStop reports whether the route serves the stop id.
func (r Route) HasStop(id int) bool {
	for _, s := range r.Stops {
		if s.ID == id {
			return true
		}
	}
	return false
}

// StopIndex returns the position of the stop in the forward order, or -1.
func (r Route) StopIndex(id int) int {
	for i, s := range r.Stops {
		if s.ID == id {
			return i
		}
	}
	return -1
}
