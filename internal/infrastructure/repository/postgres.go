package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/asset-lending/internal/domain/reservation"
	"github.com/example/asset-lending/internal/domain/stock"
	"github.com/jmoiron/sqlx"
)

// PGRepository stores assets and reservations in PostgreSQL
type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) CreateAsset(ctx context.Context, a *stock.Asset) error {
	query := `
        INSERT INTO assets (id, name, description, category_id, stock_quantity, created_at, updated_at)
        VALUES (:id, :name, :description, :category_id, :stock_quantity, :created_at, :updated_at)
    `
	if _, err := r.DB.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

func (r *PGRepository) GetAsset(ctx context.Context, id string) (*stock.Asset, error) {
	var a stock.Asset
	err := r.DB.GetContext(ctx, &a, `SELECT * FROM assets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, stock.ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PGRepository) ListAssets(ctx context.Context) ([]*stock.Asset, error) {
	var assets []*stock.Asset
	err := r.DB.SelectContext(ctx, &assets, `SELECT * FROM assets ORDER BY name, id`)
	return assets, err
}

// reservationRow is the reservations table layout
type reservationRow struct {
	ID                 string       `db:"id"`
	CustomerID         string       `db:"customer_id"`
	Status             string       `db:"status"`
	CheckoutDate       sql.NullTime `db:"checkout_date"`
	ReturnDate         sql.NullTime `db:"return_date"`
	ActualCheckoutDate sql.NullTime `db:"actual_checkout_date"`
	ActualReturnDate   sql.NullTime `db:"actual_return_date"`
	Notes              string       `db:"notes"`
	CreatedAt          sql.NullTime `db:"created_at"`
	UpdatedAt          sql.NullTime `db:"updated_at"`
	ValidatedAt        sql.NullTime `db:"validated_at"`
	CancelledAt        sql.NullTime `db:"cancelled_at"`
}

type itemRow struct {
	ReservationID string `db:"reservation_id"`
	reservation.Item
}

func toRow(res *reservation.Reservation) reservationRow {
	return reservationRow{
		ID:                 res.ID,
		CustomerID:         res.CustomerID,
		Status:             string(res.Status),
		CheckoutDate:       sql.NullTime{Time: res.CheckoutDate, Valid: true},
		ReturnDate:         sql.NullTime{Time: res.ReturnDate, Valid: true},
		ActualCheckoutDate: nullTime(res.ActualCheckoutDate),
		ActualReturnDate:   nullTime(res.ActualReturnDate),
		Notes:              res.Notes,
		CreatedAt:          sql.NullTime{Time: res.CreatedAt, Valid: true},
		UpdatedAt:          sql.NullTime{Time: res.UpdatedAt, Valid: true},
		ValidatedAt:        nullTime(res.ValidatedAt),
		CancelledAt:        nullTime(res.CancelledAt),
	}
}

func (row reservationRow) toReservation(items []reservation.Item) *reservation.Reservation {
	return &reservation.Reservation{
		ID:                 row.ID,
		CustomerID:         row.CustomerID,
		Status:             reservation.Status(row.Status),
		CheckoutDate:       row.CheckoutDate.Time,
		ReturnDate:         row.ReturnDate.Time,
		ActualCheckoutDate: timePtr(row.ActualCheckoutDate),
		ActualReturnDate:   timePtr(row.ActualReturnDate),
		Notes:              row.Notes,
		Items:              items,
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
		ValidatedAt:        timePtr(row.ValidatedAt),
		CancelledAt:        timePtr(row.CancelledAt),
	}
}

func (r *PGRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertReservation := `
        INSERT INTO reservations (
            id, customer_id, status, checkout_date, return_date,
            actual_checkout_date, actual_return_date, notes,
            created_at, updated_at, validated_at, cancelled_at
        )
        VALUES (
            :id, :customer_id, :status, :checkout_date, :return_date,
            :actual_checkout_date, :actual_return_date, :notes,
            :created_at, :updated_at, :validated_at, :cancelled_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, insertReservation, toRow(res)); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := insertItems(ctx, tx, res); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItems(ctx context.Context, tx *sqlx.Tx, res *reservation.Reservation) error {
	query := `
        INSERT INTO reservation_items (
            reservation_id, asset_id, quantity_reserved, quantity_checked_out,
            quantity_returned, quantity_damaged, notes
        )
        VALUES (
            :reservation_id, :asset_id, :quantity_reserved, :quantity_checked_out,
            :quantity_returned, :quantity_damaged, :notes
        )
    `
	for _, item := range res.Items {
		if _, err := tx.NamedExecContext(ctx, query, itemRow{ReservationID: res.ID, Item: item}); err != nil {
			return fmt.Errorf("failed to insert reservation item: %w", err)
		}
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	return r.get(ctx, r.DB, id, `SELECT * FROM reservations WHERE id = $1`)
}

func (r *PGRepository) get(ctx context.Context, q sqlx.QueryerContext, id, query string) (*reservation.Reservation, error) {
	var row reservationRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}

	items, err := r.items(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	return row.toReservation(items[id]), nil
}

func (r *PGRepository) items(ctx context.Context, q sqlx.QueryerContext, reservationIDs []string) (map[string][]reservation.Item, error) {
	result := make(map[string][]reservation.Item, len(reservationIDs))
	if len(reservationIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
        SELECT * FROM reservation_items
        WHERE reservation_id IN (?)
        ORDER BY reservation_id, asset_id
    `, reservationIDs)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var rows []itemRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load reservation items: %w", err)
	}
	for _, row := range rows {
		result[row.ReservationID] = append(result[row.ReservationID], row.Item)
	}
	return result, nil
}

func (r *PGRepository) List(ctx context.Context) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	if err := r.DB.SelectContext(ctx, &rows, `SELECT * FROM reservations ORDER BY checkout_date DESC, id`); err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

func (r *PGRepository) ListByAsset(ctx context.Context, assetID string) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	err := r.DB.SelectContext(ctx, &rows, `
        SELECT r.* FROM reservations r
        WHERE EXISTS (
            SELECT 1 FROM reservation_items i
            WHERE i.reservation_id = r.id AND i.asset_id = $1
        )
        ORDER BY r.created_at
    `, assetID)
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

func (r *PGRepository) withItems(ctx context.Context, rows []reservationRow) ([]*reservation.Reservation, error) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	items, err := r.items(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*reservation.Reservation, len(rows))
	for i, row := range rows {
		result[i] = row.toReservation(items[row.ID])
	}
	return result, nil
}

// Update locks the reservation row for the duration of fn and rewrites the
// reservation with its items
func (r *PGRepository) Update(ctx context.Context, id string, fn func(res *reservation.Reservation) error) (*reservation.Reservation, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := r.get(ctx, tx, id, `SELECT * FROM reservations WHERE id = $1 FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	if err := fn(current); err != nil {
		return nil, err
	}

	updateReservation := `
        UPDATE reservations SET
            status = :status,
            checkout_date = :checkout_date,
            return_date = :return_date,
            actual_checkout_date = :actual_checkout_date,
            actual_return_date = :actual_return_date,
            notes = :notes,
            updated_at = :updated_at,
            validated_at = :validated_at,
            cancelled_at = :cancelled_at
        WHERE id = :id
    `
	if _, err := tx.NamedExecContext(ctx, updateReservation, toRow(current)); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}

	// items may have been replaced by an edit
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_items WHERE reservation_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to update reservation items: %w", err)
	}
	if err := insertItems(ctx, tx, current); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return current, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
