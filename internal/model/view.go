package model

// StatusActive is the status value counted as active equipment.
const StatusActive = "En service"

// Stats summarises a query view.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Undefined int `json:"undefined"`
}
