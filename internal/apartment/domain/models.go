// Package domain contains the apartment directory read by billing.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Building struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Address   string       `json:"address" gorm:"type:text"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Building) TableName() string { return "buildings" }

type Apartment struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	BuildingID snowflake.ID    `json:"building_id" gorm:"not null;index"`
	RoomNumber int             `json:"room_number" gorm:"not null"`
	Floor      int             `json:"floor" gorm:"not null"`
	Area       decimal.Decimal `json:"area" gorm:"type:numeric(10,2);not null"`
	OwnerID    *snowflake.ID   `json:"owner_id,omitempty" gorm:"index"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Apartment) TableName() string { return "apartments" }

type Resident struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ApartmentID snowflake.ID `json:"apartment_id" gorm:"not null;index"`
	FullName    string       `json:"full_name" gorm:"type:text;not null"`
	Phone       string       `json:"phone,omitempty" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Resident) TableName() string { return "residents" }

// VehicleClass is the parking rate a vehicle is charged under.
type VehicleClass string

const (
	VehicleBicycle   VehicleClass = "BICYCLE"
	VehicleMotorbike VehicleClass = "MOTORBIKE"
	VehicleCar       VehicleClass = "CAR"
)

// VehicleClasses lists classes in parking breakdown order.
var VehicleClasses = []VehicleClass{VehicleBicycle, VehicleMotorbike, VehicleCar}

func (c VehicleClass) Valid() bool {
	switch c {
	case VehicleBicycle, VehicleMotorbike, VehicleCar:
		return true
	default:
		return false
	}
}

func ParseVehicleClass(raw string) (VehicleClass, error) {
	c := VehicleClass(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", ErrInvalidVehicleClass
	}
	return c, nil
}

type Vehicle struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	ResidentID   snowflake.ID `json:"resident_id" gorm:"not null;index"`
	Class        VehicleClass `json:"class" gorm:"column:class;type:text;not null"`
	LicensePlate string       `json:"license_plate,omitempty" gorm:"type:text"`
	Active       bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Vehicle) TableName() string { return "vehicles" }

// Snapshot is the read-only view of an apartment used for one billing run.
type Snapshot struct {
	ID            snowflake.ID         `json:"id"`
	BuildingID    snowflake.ID         `json:"building_id"`
	BuildingName  string               `json:"building_name"`
	RoomNumber    int                  `json:"room_number"`
	Floor         int                  `json:"floor"`
	Area          decimal.Decimal      `json:"area"`
	OwnerID       *snowflake.ID        `json:"owner_id,omitempty"`
	ResidentCount int                  `json:"resident_count"`
	Vehicles      map[VehicleClass]int `json:"vehicles"`
}

// Label renders the apartment the way invoice summaries show it.
func (s Snapshot) Label() string {
	return FormatLabel(s.RoomNumber, s.BuildingName)
}

func FormatLabel(roomNumber int, buildingName string) string {
	return fmt.Sprintf("Apartment %d - %s", roomNumber, buildingName)
}

// VehicleCount returns how many active vehicles of class belong to the apartment.
func (s Snapshot) VehicleCount(class VehicleClass) int {
	if s.Vehicles == nil {
		return 0
	}
	return s.Vehicles[class]
}
