package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"appt-service/internal/models"
	"appt-service/pkg/response"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// #### schedules ####

type windowRow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GetSchedule returns response.ErrNotFound when the subject has no setting row.
func (s *Storage) GetSchedule(ctx context.Context, subjectID string) (*models.SubjectSchedule, error) {
	const op = "storage.postgres.GetSchedule"

	out := models.SubjectSchedule{SubjectID: subjectID, Days: models.WeeklySchedule{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM schedule_settings WHERE subject_id=$1`, subjectID).
		Scan(&out.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT weekday, is_active, windows FROM schedule_days WHERE subject_id=$1 ORDER BY weekday`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			weekday  int
			isActive bool
			raw      []byte
		)
		if err := rows.Scan(&weekday, &isActive, &raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		windows, err := decodeWindows(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: weekday %d: %w", op, weekday, err)
		}

		out.Days[time.Weekday(weekday)] = models.DayConfig{IsActive: isActive, Windows: windows}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &out, nil
}

// ReplaceSchedule swaps all days of a subject in one transaction and returns
// the new setting timestamp.
func (s *Storage) ReplaceSchedule(ctx context.Context, subjectID string, schedule models.WeeklySchedule) (time.Time, error) {
	const op = "storage.postgres.ReplaceSchedule"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var updatedAt time.Time
	err = tx.QueryRowContext(ctx,
		`INSERT INTO schedule_settings (subject_id) VALUES ($1)
		ON CONFLICT (subject_id) DO UPDATE SET updated_at = now()
		RETURNING updated_at`, subjectID).
		Scan(&updatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: upsert setting: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_days WHERE subject_id=$1`, subjectID); err != nil {
		return time.Time{}, fmt.Errorf("%s: clear days: %w", op, err)
	}

	for wd, day := range schedule {
		raw, err := encodeWindows(day.Windows)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", op, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO schedule_days (subject_id, weekday, is_active, windows) VALUES ($1, $2, $3, $4)`,
			subjectID, int(wd), day.IsActive, raw)
		if err != nil {
			sqlErr, ok := err.(*pq.Error)
			if ok && sqlErr.Code == "23505" {
				return time.Time{}, fmt.Errorf("%s: %w", op, response.ErrConflict)
			}
			return time.Time{}, fmt.Errorf("%s: insert day: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return updatedAt, nil
}

func encodeWindows(windows []models.TimeWindow) ([]byte, error) {
	rows := make([]windowRow, 0, len(windows))
	for _, w := range windows {
		rows = append(rows, windowRow{Start: w.Start.String(), End: w.End.String()})
	}
	return json.Marshal(rows)
}

func decodeWindows(raw []byte) ([]models.TimeWindow, error) {
	var rows []windowRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}

	windows := make([]models.TimeWindow, 0, len(rows))
	for _, r := range rows {
		w, err := models.ParseTimeWindow(r.Start, r.End)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	return windows, nil
}

// #### appointments ####

const appointmentColumns = `record_id, subject_id, patient_id, date, start_minute, end_minute, mode,
	payment_completed, visit_completed, is_cancelled, reason, cancel_reason, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (*models.Appointment, error) {
	var (
		a          models.Appointment
		start, end int
		mode       string
	)

	err := row.Scan(
		&a.ID,
		&a.SubjectID,
		&a.PatientID,
		&a.Date,
		&start,
		&end,
		&mode,
		&a.PaymentCompleted,
		&a.VisitCompleted,
		&a.IsCancelled,
		&a.Reason,
		&a.CancelReason,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Date = models.Day(a.Date)
	a.Window = models.TimeWindow{Start: models.Clock(start), End: models.Clock(end)}
	a.Mode = models.Mode(mode)

	return &a, nil
}

func (s *Storage) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointment"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE record_id=$1`, id)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Storage) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]*models.Appointment, error) {
	const op = "storage.postgres.ListAppointments"

	var (
		conditions []string
		args       []any
	)

	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("date >= $%d::date", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.Format(models.DateLayout))
		conditions = append(conditions, fmt.Sprintf("date <= $%d::date", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date, start_minute, record_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// ListTakenWindows returns the windows held by active appointments of the
// subject on date, skipping excludeID.
func (s *Storage) ListTakenWindows(ctx context.Context, subjectID string, date time.Time, excludeID string) ([]models.TimeWindow, error) {
	const op = "storage.postgres.ListTakenWindows"

	rows, err := s.db.QueryContext(ctx,
		`SELECT start_minute, end_minute FROM appointments
		WHERE subject_id=$1 AND date=$2::date AND NOT is_cancelled AND record_id::text <> $3
		ORDER BY start_minute`,
		subjectID, date.Format(models.DateLayout), excludeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	taken := []models.TimeWindow{}
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		taken = append(taken, models.TimeWindow{Start: models.Clock(start), End: models.Clock(end)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return taken, nil
}

// UpdateAppointment writes every mutable column and refreshes UpdatedAt.
func (s *Storage) UpdateAppointment(ctx context.Context, a *models.Appointment) error {
	const op = "storage.postgres.UpdateAppointment"

	err := s.db.QueryRowContext(ctx,
		`UPDATE appointments SET
			date=$2::date,
			start_minute=$3,
			end_minute=$4,
			mode=$5,
			payment_completed=$6,
			visit_completed=$7,
			is_cancelled=$8,
			reason=$9,
			cancel_reason=$10,
			updated_at=now()
		WHERE record_id=$1
		RETURNING updated_at`,
		a.ID,
		a.Date.Format(models.DateLayout),
		int(a.Window.Start),
		int(a.Window.End),
		string(a.Mode),
		a.PaymentCompleted,
		a.VisitCompleted,
		a.IsCancelled,
		a.Reason,
		a.CancelReason,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23514" {
			return fmt.Errorf("%s: %w", op, response.ErrBadRequest)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
