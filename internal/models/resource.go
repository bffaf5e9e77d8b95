package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResourceCategory represents the kind of bookable resource
// Matches PostgreSQL ENUM: resource_category
type ResourceCategory string

const (
	CategoryLodging   ResourceCategory = "lodging"   // homestay rooms, booked by the night
	CategoryDining    ResourceCategory = "dining"    // restaurant tables, booked by the slot
	CategoryTransport ResourceCategory = "transport" // drivers/vehicles, booked by the hour
)

// IsValid checks the category against the known set
func (c ResourceCategory) IsValid() bool {
	switch c {
	case CategoryLodging, CategoryDining, CategoryTransport:
		return true
	}
	return false
}

// CapacityUnit is the unit a resource is priced in
type CapacityUnit string

const (
	UnitRoomNight   CapacityUnit = "room_night"
	UnitTableSlot   CapacityUnit = "table_slot"
	UnitVehicleHour CapacityUnit = "vehicle_hour"
)

// DefaultSlotMinutes is used for dining resources without an explicit slot length
const DefaultSlotMinutes = 90

// Resource is a reservable item owned by a vendor.
// The reservation core only reads resources; vendor management owns writes.
type Resource struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	OwnerID       uuid.UUID        `json:"ownerId" db:"owner_id"`
	Name          string           `json:"name" db:"name"`
	Category      ResourceCategory `json:"category" db:"category"`
	CapacityUnit  CapacityUnit     `json:"capacityUnit" db:"capacity_unit"`
	UnitPrice     decimal.Decimal  `json:"unitPrice" db:"unit_price"`
	TotalCapacity int              `json:"totalCapacity" db:"total_capacity"` // concurrent units (tables, vehicles); 1 for lodging
	MaxPartySize  int              `json:"maxPartySize" db:"max_party_size"`  // 0 means no limit
	SlotMinutes   int              `json:"slotMinutes" db:"slot_minutes"`     // dining only
	IsActive      bool             `json:"isActive" db:"is_active"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" db:"updated_at"`
}

// IsExclusive reports whether the resource holds a single booking at a time
func (r *Resource) IsExclusive() bool {
	return r.TotalCapacity <= 1
}

// SlotDuration returns the fixed table-slot length for dining resources
func (r *Resource) SlotDuration() time.Duration {
	if r.SlotMinutes <= 0 {
		return DefaultSlotMinutes * time.Minute
	}
	return time.Duration(r.SlotMinutes) * time.Minute
}

// AcceptsPartySize checks the party against the resource limit
func (r *Resource) AcceptsPartySize(partySize int) bool {
	return r.MaxPartySize <= 0 || partySize <= r.MaxPartySize
}

// Interval is a half-open time window [Start, End)
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps uses half-open comparison, so back-to-back intervals do not overlap
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Duration returns End - Start
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// AvailabilityResponse is returned by the read-only availability preview
type AvailabilityResponse struct {
	ResourceID        uuid.UUID        `json:"resourceId"`
	Category          ResourceCategory `json:"category"`
	IntervalStart     time.Time        `json:"intervalStart"`
	IntervalEnd       time.Time        `json:"intervalEnd"`
	Available         bool             `json:"available"`
	RemainingCapacity int              `json:"remainingCapacity"`
	Units             int              `json:"units"`
	BaseAmount        decimal.Decimal  `json:"baseAmount"`
}
