package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() apartmentdomain.Repository {
	return &repo{}
}

type snapshotRow struct {
	ID            snowflake.ID
	BuildingID    snowflake.ID
	BuildingName  string
	RoomNumber    int
	Floor         int
	Area          decimal.Decimal
	OwnerID       *snowflake.ID
	ResidentCount int
}

const snapshotQuery = `SELECT a.id, a.building_id, b.name AS building_name, a.room_number, a.floor, a.area, a.owner_id,
	COUNT(r.id) AS resident_count
 FROM apartments a
 JOIN buildings b ON b.id = a.building_id
 JOIN residents r ON r.apartment_id = a.id`

func (r *repo) ListWithResidents(ctx context.Context, db *gorm.DB) ([]apartmentdomain.Snapshot, error) {
	var rows []snapshotRow
	err := db.WithContext(ctx).Raw(
		snapshotQuery + `
		 GROUP BY a.id, a.building_id, b.name, a.room_number, a.floor, a.area, a.owner_id
		 ORDER BY b.name ASC, a.room_number ASC, a.id ASC`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := lo.Map(rows, func(row snapshotRow, _ int) snowflake.ID { return row.ID })
	vehicles, err := r.ListVehicleClasses(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	snapshots := make([]apartmentdomain.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, toSnapshot(row, vehicles[row.ID]))
	}
	return snapshots, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*apartmentdomain.Snapshot, error) {
	var rows []snapshotRow
	err := db.WithContext(ctx).Raw(
		`SELECT a.id, a.building_id, b.name AS building_name, a.room_number, a.floor, a.area, a.owner_id,
			(SELECT COUNT(*) FROM residents r WHERE r.apartment_id = a.id) AS resident_count
		 FROM apartments a
		 JOIN buildings b ON b.id = a.building_id
		 WHERE a.id = ?`,
		id,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	vehicles, err := r.ListVehicleClasses(ctx, db, []snowflake.ID{id})
	if err != nil {
		return nil, err
	}
	snapshot := toSnapshot(rows[0], vehicles[id])
	return &snapshot, nil
}

func (r *repo) ListVehicleClasses(ctx context.Context, db *gorm.DB, apartmentIDs []snowflake.ID) (map[snowflake.ID][]apartmentdomain.VehicleClass, error) {
	out := make(map[snowflake.ID][]apartmentdomain.VehicleClass, len(apartmentIDs))
	if len(apartmentIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ApartmentID snowflake.ID
		Class       apartmentdomain.VehicleClass
	}
	err := db.WithContext(ctx).Raw(
		`SELECT r.apartment_id, v.class
		 FROM vehicles v
		 JOIN residents r ON r.id = v.resident_id
		 WHERE v.active = ? AND r.apartment_id IN ?
		 ORDER BY r.apartment_id ASC, v.id ASC`,
		true, apartmentIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ApartmentID] = append(out[row.ApartmentID], row.Class)
	}
	return out, nil
}

func toSnapshot(row snapshotRow, classes []apartmentdomain.VehicleClass) apartmentdomain.Snapshot {
	return apartmentdomain.Snapshot{
		ID:            row.ID,
		BuildingID:    row.BuildingID,
		BuildingName:  row.BuildingName,
		RoomNumber:    row.RoomNumber,
		Floor:         row.Floor,
		Area:          row.Area,
		OwnerID:       row.OwnerID,
		ResidentCount: row.ResidentCount,
		Vehicles:      lo.CountValues(classes),
	}
}
