package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres schema. The billing tables and the
// service type catalog exist after the first start.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models for dialects the SQL files do not target.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&apartmentdomain.Building{},
		&apartmentdomain.Apartment{},
		&apartmentdomain.Resident{},
		&apartmentdomain.Vehicle{},
		&pricedomain.ServiceType{},
		&pricedomain.PriceSchedule{},
		&pricedomain.PriceTier{},
		&usagedomain.MeterReading{},
		&extrafeedomain.ExtraFee{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return SeedServiceTypes(conn, time.Now().UTC())
}

// DefaultServiceTypes mirrors the rows seeded by 000002_seed_service_types.
func DefaultServiceTypes(now time.Time) []pricedomain.ServiceType {
	row := func(id int64, code pricedomain.ServiceCategory, name, unit string) pricedomain.ServiceType {
		return pricedomain.ServiceType{ID: snowflake.ID(id), Code: code, Name: name, Unit: unit, Active: true, CreatedAt: now, UpdatedAt: now}
	}
	return []pricedomain.ServiceType{
		row(1, pricedomain.CategoryManagement, "Management fee", "m2"),
		row(2, pricedomain.CategoryParking, "Parking fee", "vehicle"),
		row(3, pricedomain.CategoryElectricity, "Electricity", "kWh"),
		row(4, pricedomain.CategoryWater, "Water", "m3"),
		row(5, pricedomain.CategoryExtra, "Extra charges", "item"),
	}
}

// SeedServiceTypes inserts the default catalog, leaving existing codes untouched.
func SeedServiceTypes(conn *gorm.DB, now time.Time) error {
	types := DefaultServiceTypes(now)
	return conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&types).Error
}
