package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

var _ domain.SessionStore = (*SQLiteStore)(nil)

// SQLiteStore persists sessions in a local SQLite database. The schema
// mirrors the hosted backend tables so a session file can be synced up
// later without translation.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLite opens (and if needed creates) the database at dbPath.
func NewSQLite(dbPath string, log *logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency with the fire-and-forget writers.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, log: log}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS cooking_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		recipe_ids TEXT NOT NULL,
		status TEXT NOT NULL,
		pax_multiplier REAL NOT NULL DEFAULT 1,
		current_step_index INTEGER NOT NULL DEFAULT 0,
		units TEXT NOT NULL DEFAULT 'metric',
		started_at INTEGER,
		completed_at INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_steps (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES cooking_sessions(id),
		source_step_id TEXT,
		order_index INTEGER NOT NULL,
		short_text TEXT NOT NULL,
		detailed_description TEXT NOT NULL,
		media_url TEXT,
		is_completed INTEGER NOT NULL DEFAULT 0,
		completed_at INTEGER,
		is_skipped INTEGER NOT NULL DEFAULT 0,
		agent_notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_steps_session ON session_steps(session_id, order_index);

	CREATE TABLE IF NOT EXISTS session_step_ingredients (
		step_id TEXT NOT NULL REFERENCES session_steps(id),
		placeholder_key TEXT NOT NULL,
		ingredient_id TEXT,
		name TEXT NOT NULL,
		amount REAL NOT NULL,
		original_amount REAL NOT NULL,
		unit TEXT,
		is_substitution INTEGER NOT NULL DEFAULT 0,
		substitution_note TEXT,
		PRIMARY KEY (step_id, placeholder_key)
	);

	CREATE TABLE IF NOT EXISTS session_step_equipment (
		step_id TEXT NOT NULL REFERENCES session_steps(id),
		placeholder_key TEXT NOT NULL,
		equipment_id TEXT,
		name TEXT NOT NULL,
		PRIMARY KEY (step_id, placeholder_key)
	);

	CREATE TABLE IF NOT EXISTS session_modifications (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES cooking_sessions(id),
		step_index INTEGER NOT NULL,
		type TEXT NOT NULL,
		details_json TEXT,
		changes_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mods_session ON session_modifications(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession writes the session row and all its steps in one
// transaction.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session, steps []*domain.SessionStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cooking_sessions (id, user_id, recipe_ids, status, pax_multiplier,
			current_step_index, units, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, strings.Join(session.RecipeIDs, ","),
		session.Status.String(), session.PaxMultiplier, session.CurrentStepIndex,
		session.Units.String(), unixOrNil(session.StartedAt), unixOrNil(session.CompletedAt),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, st := range steps {
		if err := insertStepTx(ctx, tx, st); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	s.log.Debug("persisted session %s with %d steps", session.ID, len(steps))
	return nil
}

func insertStepTx(ctx context.Context, tx *sql.Tx, st *domain.SessionStep) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_steps (id, session_id, source_step_id, order_index, short_text,
			detailed_description, media_url, is_completed, completed_at, is_skipped, agent_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_index = excluded.order_index,
			short_text = excluded.short_text,
			detailed_description = excluded.detailed_description,
			is_completed = excluded.is_completed,
			completed_at = excluded.completed_at,
			is_skipped = excluded.is_skipped,
			agent_notes = excluded.agent_notes`,
		st.ID, st.SessionID, st.SourceStepID, st.OrderIndex, st.ShortText,
		st.DetailedDescription, st.MediaURL, st.IsCompleted, unixOrNil(st.CompletedAt),
		st.IsSkipped, st.AgentNotes,
	)
	if err != nil {
		return fmt.Errorf("insert step %s: %w", st.ID, err)
	}

	for _, ing := range st.Ingredients {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_step_ingredients (step_id, placeholder_key, ingredient_id,
				name, amount, original_amount, unit, is_substitution, substitution_note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(step_id, placeholder_key) DO UPDATE SET
				name = excluded.name,
				amount = excluded.amount,
				is_substitution = excluded.is_substitution,
				substitution_note = excluded.substitution_note`,
			st.ID, ing.PlaceholderKey, ing.IngredientID,
			ing.Name, ing.Amount, ing.OriginalAmount, ing.Unit,
			ing.IsSubstitution, ing.SubstitutionNote,
		)
		if err != nil {
			return fmt.Errorf("insert step ingredient %s/%s: %w", st.ID, ing.PlaceholderKey, err)
		}
	}
	for _, eq := range st.Equipment {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_step_equipment (step_id, placeholder_key, equipment_id, name)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(step_id, placeholder_key) DO UPDATE SET name = excluded.name`,
			st.ID, eq.PlaceholderKey, eq.EquipmentID, eq.Name,
		)
		if err != nil {
			return fmt.Errorf("insert step equipment %s/%s: %w", st.ID, eq.PlaceholderKey, err)
		}
	}
	return nil
}

// LoadSession reads back a session and its steps, ingredients and
// equipment included, sorted by order index.
func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (*domain.Session, []*domain.SessionStep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, recipe_ids, status, pax_multiplier,
		       current_step_index, units, started_at, completed_at, created_at
		FROM cooking_sessions WHERE id = ?`, id)

	var sess domain.Session
	var recipeIDs, status, units string
	var startedAt, completedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(&sess.ID, &sess.UserID, &recipeIDs, &status, &sess.PaxMultiplier,
		&sess.CurrentStepIndex, &units, &startedAt, &completedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan session row: %w", err)
	}

	if recipeIDs != "" {
		sess.RecipeIDs = strings.Split(recipeIDs, ",")
	}
	sess.Status = parseStatus(status)
	if units == domain.UnitsImperial.String() {
		sess.Units = domain.UnitsImperial
	}
	if startedAt.Valid {
		sess.StartedAt = time.Unix(startedAt.Int64, 0)
	}
	if completedAt.Valid {
		sess.CompletedAt = time.Unix(completedAt.Int64, 0)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)

	steps, err := s.loadSteps(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &sess, steps, nil
}

func (s *SQLiteStore) loadSteps(ctx context.Context, sessionID string) ([]*domain.SessionStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, source_step_id, order_index, short_text,
		       detailed_description, media_url, is_completed, completed_at, is_skipped, agent_notes
		FROM session_steps WHERE session_id = ? ORDER BY order_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []*domain.SessionStep
	for rows.Next() {
		var st domain.SessionStep
		var sourceStepID, mediaURL, agentNotes sql.NullString
		var completedAt sql.NullInt64

		if err := rows.Scan(&st.ID, &st.SessionID, &sourceStepID, &st.OrderIndex, &st.ShortText,
			&st.DetailedDescription, &mediaURL, &st.IsCompleted, &completedAt,
			&st.IsSkipped, &agentNotes); err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		st.SourceStepID = sourceStepID.String
		st.MediaURL = mediaURL.String
		st.AgentNotes = agentNotes.String
		if completedAt.Valid {
			st.CompletedAt = time.Unix(completedAt.Int64, 0)
		}
		steps = append(steps, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	for _, st := range steps {
		if err := s.loadStepDetails(ctx, st); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

func (s *SQLiteStore) loadStepDetails(ctx context.Context, st *domain.SessionStep) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT placeholder_key, ingredient_id, name, amount, original_amount,
		       unit, is_substitution, substitution_note
		FROM session_step_ingredients WHERE step_id = ?`, st.ID)
	if err != nil {
		return fmt.Errorf("query step ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing domain.StepIngredient
		var ingredientID, unit, note sql.NullString
		if err := rows.Scan(&ing.PlaceholderKey, &ingredientID, &ing.Name, &ing.Amount,
			&ing.OriginalAmount, &unit, &ing.IsSubstitution, &note); err != nil {
			return fmt.Errorf("scan ingredient row: %w", err)
		}
		ing.IngredientID = ingredientID.String
		ing.Unit = unit.String
		ing.SubstitutionNote = note.String
		st.Ingredients = append(st.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ingredients: %w", err)
	}

	eqRows, err := s.db.QueryContext(ctx, `
		SELECT placeholder_key, equipment_id, name
		FROM session_step_equipment WHERE step_id = ?`, st.ID)
	if err != nil {
		return fmt.Errorf("query step equipment: %w", err)
	}
	defer eqRows.Close()

	for eqRows.Next() {
		var eq domain.StepEquipment
		var equipmentID sql.NullString
		if err := eqRows.Scan(&eq.PlaceholderKey, &equipmentID, &eq.Name); err != nil {
			return fmt.Errorf("scan equipment row: %w", err)
		}
		eq.EquipmentID = equipmentID.String
		st.Equipment = append(st.Equipment, eq)
	}
	return eqRows.Err()
}

// UpdateCurrentStep persists the session's raw step index.
func (s *SQLiteStore) UpdateCurrentStep(ctx context.Context, sessionID string, rawIndex int) error {
	return s.execOne(ctx, "update current step",
		`UPDATE cooking_sessions SET current_step_index = ? WHERE id = ?`, rawIndex, sessionID)
}

// UpdateSessionStatus persists a status transition.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	var completedAt interface{}
	if status == domain.SessionCompleted {
		completedAt = time.Now().Unix()
	}
	return s.execOne(ctx, "update session status",
		`UPDATE cooking_sessions SET status = ?, completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		status.String(), completedAt, sessionID)
}

// MarkStepCompleted flags a step completed.
func (s *SQLiteStore) MarkStepCompleted(ctx context.Context, stepID string) error {
	return s.execOne(ctx, "mark step completed",
		`UPDATE session_steps SET is_completed = 1, completed_at = ? WHERE id = ?`,
		time.Now().Unix(), stepID)
}

// MarkStepSkipped flags a step skipped.
func (s *SQLiteStore) MarkStepSkipped(ctx context.Context, stepID string) error {
	return s.execOne(ctx, "mark step skipped",
		`UPDATE session_steps SET is_skipped = 1 WHERE id = ?`, stepID)
}

// UpdateStepText persists new step text. An empty shortText leaves the
// short text untouched.
func (s *SQLiteStore) UpdateStepText(ctx context.Context, stepID, shortText, detailedDescription string) error {
	if shortText == "" {
		return s.execOne(ctx, "update step text",
			`UPDATE session_steps SET detailed_description = ? WHERE id = ?`,
			detailedDescription, stepID)
	}
	return s.execOne(ctx, "update step text",
		`UPDATE session_steps SET short_text = ?, detailed_description = ? WHERE id = ?`,
		shortText, detailedDescription, stepID)
}

// SubstituteIngredient swaps a step ingredient by placeholder key.
func (s *SQLiteStore) SubstituteIngredient(ctx context.Context, stepID, placeholderKey, newName string, newAmount float64, note string) error {
	query := `UPDATE session_step_ingredients
		SET name = ?, is_substitution = 1, substitution_note = ?
		WHERE step_id = ? AND placeholder_key = ?`
	args := []interface{}{newName, note, stepID, placeholderKey}
	if newAmount > 0 {
		query = `UPDATE session_step_ingredients
			SET name = ?, amount = ?, is_substitution = 1, substitution_note = ?
			WHERE step_id = ? AND placeholder_key = ?`
		args = []interface{}{newName, newAmount, note, stepID, placeholderKey}
	}
	return s.execOne(ctx, "substitute ingredient", query, args...)
}

// AdjustIngredientAmount changes a step ingredient's amount.
func (s *SQLiteStore) AdjustIngredientAmount(ctx context.Context, stepID, placeholderKey string, newAmount float64) error {
	return s.execOne(ctx, "adjust ingredient amount",
		`UPDATE session_step_ingredients SET amount = ? WHERE step_id = ? AND placeholder_key = ?`,
		newAmount, stepID, placeholderKey)
}

// InsertStep persists a newly created step with its ingredients.
func (s *SQLiteStore) InsertStep(ctx context.Context, step *domain.SessionStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert step: %w", err)
	}
	defer tx.Rollback()

	if err := insertStepTx(ctx, tx, step); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert step: %w", err)
	}
	return nil
}

// RecordModification appends to the modification log.
func (s *SQLiteStore) RecordModification(ctx context.Context, mod *domain.Modification) error {
	id := mod.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := mod.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	detailsJSON, err := json.Marshal(mod.Details)
	if err != nil {
		return fmt.Errorf("marshal modification details: %w", err)
	}
	changesJSON, err := json.Marshal(mod.Changes)
	if err != nil {
		return fmt.Errorf("marshal modification changes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_modifications (id, session_id, step_index, type, details_json, changes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, mod.SessionID, mod.StepIndex, mod.Type,
		string(detailsJSON), string(changesJSON), createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record modification: %w", err)
	}
	return nil
}

// Modifications returns the recorded modification log, oldest first.
func (s *SQLiteStore) Modifications(ctx context.Context, sessionID string) ([]*domain.Modification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, step_index, type, details_json, changes_json, created_at
		FROM session_modifications WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query modifications: %w", err)
	}
	defer rows.Close()

	var mods []*domain.Modification
	for rows.Next() {
		var m domain.Modification
		var detailsJSON, changesJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.StepIndex, &m.Type,
			&detailsJSON, &changesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan modification row: %w", err)
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &m.Details); err != nil {
				return nil, fmt.Errorf("unmarshal modification details: %w", err)
			}
		}
		if changesJSON.Valid && changesJSON.String != "" {
			if err := json.Unmarshal([]byte(changesJSON.String), &m.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal modification changes: %w", err)
			}
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		mods = append(mods, &m)
	}
	return mods, rows.Err()
}

// execOne runs a single-row write and warns when nothing matched.
func (s *SQLiteStore) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		s.log.Warn("%s affected 0 rows", op)
	}
	return nil
}

func parseStatus(s string) domain.SessionStatus {
	switch s {
	case "setup":
		return domain.SessionSetup
	case "in_progress":
		return domain.SessionInProgress
	case "paused":
		return domain.SessionPaused
	case "completed":
		return domain.SessionCompleted
	case "abandoned":
		return domain.SessionAbandoned
	default:
		return domain.SessionSetup
	}
}

func unixOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
