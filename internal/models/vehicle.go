package models

import (
	"time"

	"github.com/google/uuid"
)

// VehicleStatus represents the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleOnJob       VehicleStatus = "on_job"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleRetired     VehicleStatus = "retired"
)

// Vehicle is a tenant-owned fleet vehicle record.
type Vehicle struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID uuid.UUID `json:"tenantId" db:"tenant_id"`

	Plate  string        `json:"plate" db:"plate"`
	Make   string        `json:"make" db:"make"`
	Model  string        `json:"model" db:"model"`
	Status VehicleStatus `json:"status" db:"status"`

	DriverName string `json:"driverName,omitempty" db:"driver_name"`
}
