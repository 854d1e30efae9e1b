package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Task is one row of the tasks table. Date and Timestamp are epoch
// milliseconds; a zero Date means the task has no reminder.
type Task struct {
	ID        int64
	Title     string
	Date      int64
	Position  int
	Timestamp int64
}

// HasReminder reports whether the task carries a due date.
func (t Task) HasReminder() bool {
	return t.Date != 0
}

// Due returns the due date as a time.Time, or the zero time when unset.
func (t Task) Due() time.Time {
	if t.Date == 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.Date)
}

// AlarmKey correlates the task with its reminder registration.
func (t Task) AlarmKey() int64 {
	return t.Timestamp
}

// Millis converts t to epoch milliseconds, mapping the zero time to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	date INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL DEFAULT 0,
	timestamp INTEGER NOT NULL DEFAULT 0
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTaskColumns()
}

// ensureTaskColumns upgrades databases created before position and
// timestamp were stored.
func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"date":      "ALTER TABLE tasks ADD COLUMN date INTEGER NOT NULL DEFAULT 0;",
		"position":  "ALTER TABLE tasks ADD COLUMN position INTEGER NOT NULL DEFAULT 0;",
		"timestamp": "ALTER TABLE tasks ADD COLUMN timestamp INTEGER NOT NULL DEFAULT 0;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts t and fills in its ID. A zero Timestamp is stamped with the
// current time so the task gets a stable alarm key.
func (s *Store) Create(ctx context.Context, t *Task) (int64, error) {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return 0, fmt.Errorf("create task: %w", ErrInvalidInput)
	}
	t.Title = title
	if t.Timestamp == 0 {
		t.Timestamp = s.now().UnixMilli()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, date, position, timestamp) VALUES (?, ?, ?, ?);`,
		t.Title, t.Date, t.Position, t.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	t.ID = id
	return id, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, date, position, timestamp FROM tasks WHERE id = ?;`, id)
	t, err := scanTask(row)
	if IsNotFoundError(err) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// Update writes the title and date of t. Position and timestamp are left
// untouched.
func (s *Store) Update(ctx context.Context, t Task) error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return fmt.Errorf("update task %d: %w", t.ID, ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, date = ? WHERE id = ?;`, title, t.Date, t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	return requireAffected(res, t.ID)
}

func (s *Store) UpdatePosition(ctx context.Context, id int64, position int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET position = ? WHERE id = ?;`, position, id)
	if err != nil {
		return fmt.Errorf("update position of task %d: %w", id, err)
	}
	return requireAffected(res, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return requireAffected(res, id)
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks;`); err != nil {
		return fmt.Errorf("delete all tasks: %w", err)
	}
	return nil
}

// List returns every task in display order. The query itself makes no
// ordering promise; tasks are sorted by position, then id.
func (s *Store) List(ctx context.Context) ([]Task, error) {
	tasks, err := s.query(ctx, `SELECT id, title, date, position, timestamp FROM tasks;`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sortByPosition(tasks)
	return tasks, nil
}

// Search returns the tasks whose title contains text, ignoring case, in
// display order. An empty text matches every task.
func (s *Store) Search(ctx context.Context, text string) ([]Task, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return all, nil
	}
	matches := make([]Task, 0, len(all))
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Title), needle) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

// ListWithReminders returns the tasks that carry a due date.
func (s *Store) ListWithReminders(ctx context.Context) ([]Task, error) {
	tasks, err := s.query(ctx,
		`SELECT id, title, date, position, timestamp FROM tasks WHERE date != 0;`)
	if err != nil {
		return nil, fmt.Errorf("list tasks with reminders: %w", err)
	}
	sortByPosition(tasks)
	return tasks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (Task, error) {
	var t Task
	var date, position, timestamp sql.NullInt64
	if err := sc.Scan(&t.ID, &t.Title, &date, &position, &timestamp); err != nil {
		return Task{}, err
	}
	t.Date = date.Int64
	t.Position = int(position.Int64)
	t.Timestamp = timestamp.Int64
	return t, nil
}

func sortByPosition(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
