// Package store persists committed water-balance states, the decision
// journal and the applied-irrigation feedback in SQLite. One row per
// field-day everywhere; recomputing a day replaces its row, so the journal
// never shows two decisions for the same field-day.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/croplogic/irrigo/internal/model/entities"
)

const dayFormat = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// StateAt returns the committed state for a field on a civil day, or nil
// when that day was never committed.
func (s *Store) StateAt(fieldID string, date time.Time) (*entities.WaterBalanceState, error) {
	row := s.db.QueryRow(`
		SELECT field_id, date, dr_mm, de_mm, taw_mm, raw_mm, ks
		FROM water_balance
		WHERE field_id = ? AND date = ?
	`, fieldID, date.UTC().Format(dayFormat))
	return scanState(row)
}

// LastState returns the most recent committed state for a field, or nil for
// a field with no history yet.
func (s *Store) LastState(fieldID string) (*entities.WaterBalanceState, error) {
	row := s.db.QueryRow(`
		SELECT field_id, date, dr_mm, de_mm, taw_mm, raw_mm, ks
		FROM water_balance
		WHERE field_id = ?
		ORDER BY date DESC
		LIMIT 1
	`, fieldID)
	return scanState(row)
}

// CommitDecision stores the end-of-day state and the day's decision in one
// transaction. Either both rows land or neither does; committing the same
// field-day again overwrites both rows.
func (s *Store) CommitDecision(st entities.WaterBalanceState, dec entities.IrrigationDecision) error {
	warnings, err := json.Marshal(dec.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO water_balance (field_id, date, dr_mm, de_mm, taw_mm, raw_mm, ks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(field_id, date) DO UPDATE SET
			dr_mm = excluded.dr_mm,
			de_mm = excluded.de_mm,
			taw_mm = excluded.taw_mm,
			raw_mm = excluded.raw_mm,
			ks = excluded.ks
	`, st.FieldID, st.Date.UTC().Format(dayFormat), st.DrMM, st.DeMM, st.TAWmm, st.RAWmm, st.Ks); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert water balance: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO decisions (id, field_id, date, outcome, amount_mm, delayed, ks, dr_mm, raw_mm, et0_mm, etc_mm, expected_mm, is_real_data, message, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(field_id, date) DO UPDATE SET
			id = excluded.id,
			outcome = excluded.outcome,
			amount_mm = excluded.amount_mm,
			delayed = excluded.delayed,
			ks = excluded.ks,
			dr_mm = excluded.dr_mm,
			raw_mm = excluded.raw_mm,
			et0_mm = excluded.et0_mm,
			etc_mm = excluded.etc_mm,
			expected_mm = excluded.expected_mm,
			is_real_data = excluded.is_real_data,
			message = excluded.message,
			warnings = excluded.warnings
	`, dec.ID, dec.FieldID, dec.Date.UTC().Format(dayFormat), dec.Outcome, dec.AmountMM, dec.Delayed,
		dec.Ks, dec.DrMM, dec.RAWmm, dec.ET0mm, dec.ETcMM, dec.ExpectedMM,
		dec.IsRealData, dec.Message, string(warnings)); err != nil {
		tx.Rollback()
		return fmt.Errorf("upsert decision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// DecisionOn returns the decision committed for a field-day, or nil.
func (s *Store) DecisionOn(fieldID string, date time.Time) (*entities.IrrigationDecision, error) {
	row := s.db.QueryRow(`
		SELECT id, field_id, date, outcome, amount_mm, delayed, ks, dr_mm, raw_mm, et0_mm, etc_mm, expected_mm, is_real_data, message, warnings
		FROM decisions
		WHERE field_id = ? AND date = ?
	`, fieldID, date.UTC().Format(dayFormat))

	dec, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// RecentDecisions returns up to limit decisions for a field, newest first.
func (s *Store) RecentDecisions(fieldID string, limit int) ([]entities.IrrigationDecision, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(`
		SELECT id, field_id, date, outcome, amount_mm, delayed, ks, dr_mm, raw_mm, et0_mm, etc_mm, expected_mm, is_real_data, message, warnings
		FROM decisions
		WHERE field_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, fieldID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.IrrigationDecision
	for rows.Next() {
		dec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *dec)
	}
	return out, rows.Err()
}

// RecordApplied accumulates water actually delivered to a field on a civil
// day, as reported back by the actuation layer.
func (s *Store) RecordApplied(fieldID string, date time.Time, mm float64) error {
	if mm <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO applied_irrigation (field_id, date, mm, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(field_id, date) DO UPDATE SET
			mm = applied_irrigation.mm + excluded.mm,
			updated_at = excluded.updated_at
	`, fieldID, date.UTC().Format(dayFormat), mm, time.Now().UTC())
	return err
}

// AppliedOn returns the water delivered to a field on a civil day, 0 when
// nothing was reported.
func (s *Store) AppliedOn(fieldID string, date time.Time) (float64, error) {
	var mm float64
	err := s.db.QueryRow(`
		SELECT mm FROM applied_irrigation WHERE field_id = ? AND date = ?
	`, fieldID, date.UTC().Format(dayFormat)).Scan(&mm)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return mm, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*entities.WaterBalanceState, error) {
	var st entities.WaterBalanceState
	var day string
	err := row.Scan(&st.FieldID, &day, &st.DrMM, &st.DeMM, &st.TAWmm, &st.RAWmm, &st.Ks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Date, err = time.ParseInLocation(dayFormat, day, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse state date %q: %w", day, err)
	}
	return &st, nil
}

func scanDecision(row rowScanner) (*entities.IrrigationDecision, error) {
	var dec entities.IrrigationDecision
	var day, warnings string
	err := row.Scan(&dec.ID, &dec.FieldID, &day, &dec.Outcome, &dec.AmountMM, &dec.Delayed,
		&dec.Ks, &dec.DrMM, &dec.RAWmm, &dec.ET0mm, &dec.ETcMM, &dec.ExpectedMM,
		&dec.IsRealData, &dec.Message, &warnings)
	if err != nil {
		return nil, err
	}
	dec.Date, err = time.ParseInLocation(dayFormat, day, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse decision date %q: %w", day, err)
	}
	if warnings != "" && warnings != "null" {
		if err := json.Unmarshal([]byte(warnings), &dec.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return dec, nil
}
