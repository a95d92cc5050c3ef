package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
)

// Calibration is a stored two-point calibration profile. Anchors are in
// normalized camera coordinates.
type Calibration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	A         r2.Vec    `json:"a"`
	B         r2.Vec    `json:"b"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CalibrationRepository provides CRUD operations for calibration profiles.
// At most one profile is active.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Create inserts a profile. An empty ID is filled with a new UUID.
func (r *CalibrationRepository) Create(c *Calibration) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	c.Active = false

	_, err := r.db.Exec(
		`INSERT INTO calibrations (id, name, anchor_ax, anchor_ay, anchor_bx, anchor_by, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.Name, c.A.X, c.A.Y, c.B.X, c.B.Y, c.CreatedAt,
	)
	return err
}

const calibrationColumns = `id, name, anchor_ax, anchor_ay, anchor_bx, anchor_by, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalibration(row rowScanner) (*Calibration, error) {
	c := &Calibration{}
	var active int
	err := row.Scan(&c.ID, &c.Name, &c.A.X, &c.A.Y, &c.B.X, &c.B.Y, &active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Active = active == 1
	return c, nil
}

// Get retrieves a profile by ID.
func (r *CalibrationRepository) Get(id string) (*Calibration, error) {
	return scanCalibration(r.db.QueryRow(
		`SELECT `+calibrationColumns+` FROM calibrations WHERE id = ?`, id))
}

// Active returns the active profile, or ErrNotFound.
func (r *CalibrationRepository) Active() (*Calibration, error) {
	return scanCalibration(r.db.QueryRow(
		`SELECT `+calibrationColumns+` FROM calibrations WHERE active = 1 LIMIT 1`))
}

// List returns all profiles, newest first.
func (r *CalibrationRepository) List() ([]*Calibration, error) {
	rows, err := r.db.Query(
		`SELECT ` + calibrationColumns + ` FROM calibrations ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Calibration
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Activate marks the profile active and deactivates every other one.
func (r *CalibrationRepository) Activate(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE calibrations SET active = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(`UPDATE calibrations SET active = 0 WHERE id != ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a profile by ID.
func (r *CalibrationRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM calibrations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
