package model

import (
	"time"

	"gorm.io/datatypes"
)

// Location is where a machine is kept.
type Location string

const (
	LocationPolyTunnel01 Location = "poly_tunnel_01"
	LocationPolyTunnel02 Location = "poly_tunnel_02"
	LocationPolyTunnel03 Location = "poly_tunnel_03"
	LocationInventory    Location = "Inventory"
	LocationVehicle      Location = "Vehicle"
)

// Locations lists every accepted location in display order.
var Locations = []Location{
	LocationPolyTunnel01,
	LocationPolyTunnel02,
	LocationPolyTunnel03,
	LocationInventory,
	LocationVehicle,
}

// Valid reports whether l is one of the fixed locations.
func (l Location) Valid() bool {
	for _, known := range Locations {
		if l == known {
			return true
		}
	}
	return false
}

// Machine is a piece of greenhouse equipment with a repair schedule.
type Machine struct {
	ID          string                       `gorm:"primaryKey;size:36" json:"id"`
	Name        string                       `gorm:"size:256;not null;index" json:"name"`
	CostItems   datatypes.JSONSlice[float64] `json:"costItems"`
	Parts       datatypes.JSONSlice[string]  `json:"parts"`
	Description string                       `json:"description"`
	Location    Location                     `gorm:"size:32;not null;index" json:"location"`

	// Schedule anchors.
	LastRepairDate     time.Time `gorm:"not null" json:"lastRepairDate"`
	RepairIntervalDays int       `gorm:"not null" json:"repairIntervalDays"`

	// Derived from the anchors by schedule.Recompute on every write.
	NextRepairDate time.Time `gorm:"not null;index" json:"nextRepairDate"`
	RemainingDays  int       `gorm:"not null" json:"remainingDays"`

	VehicleNumber string   `gorm:"size:64" json:"vehicleNumber,omitempty"`
	Capacity      *float64 `json:"capacity,omitempty"`

	CreatedBy string    `gorm:"size:36;index" json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
