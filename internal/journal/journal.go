// Package journal records what each migration run did in a SQLite
// database: the entities it found or created and every author matching
// decision, so weak or declined matches can be reviewed afterwards.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned when the journal holds no run yet.
var ErrNoRuns = errors.New("journal has no runs")

// Entity outcomes.
const (
	OutcomeFound   = "found"
	OutcomeCreated = "created"
	OutcomePlanned = "planned" // dry run: would have been created
	OutcomeSkipped = "skipped"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one invocation of the migration.
type Run struct {
	ID       int64     `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	DryRun   bool      `json:"dry_run"`
	Status   string    `json:"status"`
	Options  string    `json:"options,omitempty"`
}

// Entity is the outcome of one find-or-create step.
type Entity struct {
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	TargetID   string `json:"target_id,omitempty"`
	Outcome    string `json:"outcome"`
}

// Decision is one author resolution.
type Decision struct {
	ItemIdentifier string  `json:"item_identifier"`
	Mention        string  `json:"mention"`
	Email          string  `json:"email,omitempty"`
	Tier           string  `json:"tier"`
	Method         string  `json:"method,omitempty"`
	Distance       float64 `json:"distance"`
	PersonID       string  `json:"person_id,omitempty"`
	Assigned       bool    `json:"assigned"`
}

// Journal is an open journal database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started TEXT NOT NULL,
			finished TEXT,
			dry_run INTEGER NOT NULL,
			status TEXT NOT NULL,
			options TEXT
		);

		CREATE TABLE IF NOT EXISTS entities (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			identifier TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			target_id TEXT,
			outcome TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entities_run ON entities(run_id, outcome);

		CREATE TABLE IF NOT EXISTS author_decisions (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			item_identifier TEXT NOT NULL,
			mention TEXT NOT NULL,
			email TEXT,
			tier TEXT NOT NULL,
			method TEXT,
			distance REAL NOT NULL,
			person_id TEXT,
			assigned INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_run ON author_decisions(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Begin records the start of a run and returns its log.
func (j *Journal) Begin(dryRun bool, options string) (*RunLog, error) {
	res, err := j.db.Exec(`INSERT INTO runs (started, dry_run, status, options) VALUES (?, ?, ?, ?)`,
		formatTime(time.Now()), boolInt(dryRun), StatusRunning, options)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &RunLog{j: j, id: id}, nil
}

// RunLog appends to one run.
type RunLog struct {
	j  *Journal
	id int64
}

// ID returns the run identifier.
func (r *RunLog) ID() int64 {
	return r.id
}

// Entity records a find-or-create outcome.
func (r *RunLog) Entity(e Entity) error {
	_, err := r.j.db.Exec(`INSERT INTO entities (run_id, identifier, kind, title, target_id, outcome) VALUES (?, ?, ?, ?, ?, ?)`,
		r.id, e.Identifier, e.Kind, e.Title, e.TargetID, e.Outcome)
	if err != nil {
		return fmt.Errorf("recording entity %s: %w", e.Identifier, err)
	}
	return nil
}

// Decision records an author resolution.
func (r *RunLog) Decision(d Decision) error {
	_, err := r.j.db.Exec(`INSERT INTO author_decisions
		(run_id, item_identifier, mention, email, tier, method, distance, person_id, assigned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.id, d.ItemIdentifier, d.Mention, d.Email, d.Tier, d.Method, d.Distance, d.PersonID, boolInt(d.Assigned))
	if err != nil {
		return fmt.Errorf("recording decision for %q: %w", d.Mention, err)
	}
	return nil
}

// Finish closes the run with a status.
func (r *RunLog) Finish(status string) error {
	_, err := r.j.db.Exec(`UPDATE runs SET finished = ?, status = ? WHERE id = ?`, formatTime(time.Now()), status, r.id)
	return err
}

// LastRun returns the most recent run.
func (j *Journal) LastRun() (Run, error) {
	row := j.db.QueryRow(`SELECT id, started, finished, dry_run, status, options FROM runs ORDER BY id DESC LIMIT 1`)
	var (
		run      Run
		started  string
		finished sql.NullString
		dryRun   int
		options  sql.NullString
	)
	if err := row.Scan(&run.ID, &started, &finished, &dryRun, &run.Status, &options); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNoRuns
		}
		return Run{}, err
	}
	run.Started = parseTime(started)
	run.Finished = parseTime(finished.String)
	run.DryRun = dryRun != 0
	run.Options = options.String
	return run, nil
}

// Review returns the decisions of a run that need an operator's eye: those
// that assigned nobody and those in the weak tier, in recording order.
func (j *Journal) Review(runID int64) ([]Decision, error) {
	rows, err := j.db.Query(`SELECT item_identifier, mention, email, tier, method, distance, person_id, assigned
		FROM author_decisions
		WHERE run_id = ? AND (assigned = 0 OR tier = 'weak')
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var (
			d                       Decision
			email, method, personID sql.NullString
			assigned                int
		)
		if err := rows.Scan(&d.ItemIdentifier, &d.Mention, &email, &d.Tier, &method, &d.Distance, &personID, &assigned); err != nil {
			return nil, err
		}
		d.Email, d.Method, d.PersonID = email.String, method.String, personID.String
		d.Assigned = assigned != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// Entities returns the entities of a run, optionally filtered by outcome.
func (j *Journal) Entities(runID int64, outcome string) ([]Entity, error) {
	q := `SELECT identifier, kind, title, target_id, outcome FROM entities WHERE run_id = ?`
	args := []any{runID}
	if outcome != "" {
		q += ` AND outcome = ?`
		args = append(args, outcome)
	}
	rows, err := j.db.Query(q+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var (
			e        Entity
			targetID sql.NullString
		)
		if err := rows.Scan(&e.Identifier, &e.Kind, &e.Title, &targetID, &e.Outcome); err != nil {
			return nil, err
		}
		e.TargetID = targetID.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
