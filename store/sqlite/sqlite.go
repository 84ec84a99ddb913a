/*
Package sqlite provides a SQLite-backed implementation of the source and
ledger interfaces.

PURPOSE:
  Implements the persistence interfaces the reward engine reads from
  (LessonSource, CoachSource) and the payout ledger the admin workflow
  writes to (PayoutStore). In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.LessonSource: Lessons joined with master, student and membership
  generic.CoachStore:   Coach metadata and tax settings
  generic.PayoutStore:  Payout transactions

READ-ONLY LESSONS:
  The engine never writes lessons. The Save* helpers exist for seeding
  demo scenarios and tests only.

KEY TABLES:
  coaches:                   Coach metadata, tax flags, override rate
  lesson_masters:            Lesson catalogue (unit price, trial flag)
  memberships:               Student membership plans
  membership_lesson_rewards: Per-master reward base price overrides
  students:                  Students (two-person flag, membership)
  lessons:                   Completed lessons
  payouts:                   Manually recorded transfers

INDEXES:
  - idx_lessons_coach_date:  Lookback window scans (hot path)
  - idx_payouts_coach_month: Reconciliation per coach and month
  - payouts.idempotency_key: UNIQUE, rejects retried inserts

CONCURRENCY:
  Uses sync.RWMutex for thread-safety of writes. Reads go straight to the
  connection pool. An in-memory database is pinned to one connection,
  since every new connection would otherwise open an empty database.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

TIMESTAMPS:
  Stored as fixed-width UTC text so that lexical order is time order and
  range filters can run in SQL.

MIGRATION:
  Versioned goose migrations are embedded from migrations/*.sql and
  applied on New().

USAGE:
  store, err := sqlite.New("./data/payouts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/source.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - payouts/ledger.go: Admin workflow over PayoutStore
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/warp/payout-engine/generic"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so that TEXT comparison orders by time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements the source and ledger interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.LessonSource = (*Store)(nil)
	_ generic.CoachStore   = (*Store)(nil)
	_ generic.PayoutStore  = (*Store)(nil)
)

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	store, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Open opens the database at dbPath without touching the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// MIGRATIONS
// =============================================================================

func (s *Store) provider() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
}

// Migrate applies every pending migration and returns the resulting
// schema version.
func (s *Store) Migrate(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	if _, err := p.Up(ctx); err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// Rollback reverts the most recent migration.
func (s *Store) Rollback(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	if _, err := p.Down(ctx); err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// Version returns the current schema version.
func (s *Store) Version(ctx context.Context) (int64, error) {
	p, err := s.provider()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

// =============================================================================
// LESSON SOURCE (generic.LessonSource interface)
// =============================================================================

const lessonQuery = `
	SELECT l.id, l.coach_id, l.lesson_date, l.price,
	       m.id, m.title, m.unit_price, m.is_trial,
	       s.id, s.full_name, s.is_two_person_lesson,
	       ms.id, ms.name
	FROM lessons l
	LEFT JOIN lesson_masters m ON m.id = l.lesson_master_id
	LEFT JOIN students s ON s.id = l.student_id
	LEFT JOIN memberships ms ON ms.id = s.membership_id
	WHERE (? = '' OR l.coach_id = ?)
	  AND (? = '' OR l.lesson_date >= ?)
	  AND (? = '' OR l.lesson_date <= ?)
	ORDER BY l.lesson_date, l.id
`

// Lessons returns matching lessons ordered by date. Lessons whose master
// no longer exists are returned with a nil Master.
func (s *Store) Lessons(ctx context.Context, q generic.LessonQuery) ([]generic.Lesson, error) {
	from, to := formatBound(q.From), formatBound(q.To)
	rows, err := s.db.QueryContext(ctx, lessonQuery,
		string(q.CoachID), string(q.CoachID), from, from, to, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}

	memberships := make(map[generic.MembershipID]*generic.Membership)
	var lessons []generic.Lesson
	for rows.Next() {
		var (
			l                            generic.Lesson
			date                         string
			masterID, title              sql.NullString
			unitPrice                    sql.NullInt64
			isTrial                      sql.NullBool
			studentID, studentName       sql.NullString
			twoPerson                    sql.NullBool
			membershipID, membershipName sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.CoachID, &date, &l.Price,
			&masterID, &title, &unitPrice, &isTrial,
			&studentID, &studentName, &twoPerson,
			&membershipID, &membershipName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan lesson: %w", err)
		}
		l.LessonDate = parseTime(date)

		if masterID.Valid {
			l.Master = &generic.LessonMaster{
				ID:        generic.LessonMasterID(masterID.String),
				Title:     title.String,
				UnitPrice: generic.Money(unitPrice.Int64),
				IsTrial:   isTrial.Bool,
			}
		}
		if studentID.Valid {
			l.Student = &generic.Student{
				ID:                generic.StudentID(studentID.String),
				FullName:          studentName.String,
				IsTwoPersonLesson: twoPerson.Bool,
			}
			if membershipID.Valid {
				id := generic.MembershipID(membershipID.String)
				m, ok := memberships[id]
				if !ok {
					m = &generic.Membership{ID: id, Name: membershipName.String}
					memberships[id] = m
				}
				l.Student.Membership = m
			}
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Rows must be closed first: an in-memory database has one connection.
	if err := s.loadLessonRewards(ctx, memberships); err != nil {
		return nil, err
	}
	return lessons, nil
}

func (s *Store) loadLessonRewards(ctx context.Context, memberships map[generic.MembershipID]*generic.Membership) error {
	if len(memberships) == 0 {
		return nil
	}

	ids := make([]any, 0, len(memberships))
	for id := range memberships {
		ids = append(ids, string(id))
	}
	query := `
		SELECT membership_id, lesson_master_id, reward_price
		FROM membership_lesson_rewards
		WHERE membership_id IN (` + placeholders(len(ids)) + `)
		ORDER BY membership_id, position, rowid
	`
	rows, err := s.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return fmt.Errorf("failed to query lesson rewards: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			membershipID, masterID string
			price                  sql.NullInt64
		)
		if err := rows.Scan(&membershipID, &masterID, &price); err != nil {
			return fmt.Errorf("failed to scan lesson reward: %w", err)
		}
		lr := generic.MembershipLessonReward{LessonMasterID: generic.LessonMasterID(masterID)}
		if price.Valid {
			p := generic.Money(price.Int64)
			lr.RewardPrice = &p
		}
		m := memberships[generic.MembershipID(membershipID)]
		m.LessonRewards = append(m.LessonRewards, lr)
	}
	return rows.Err()
}

// =============================================================================
// COACH STORE (generic.CoachStore interface)
// =============================================================================

const coachColumns = `id, full_name, email, created_at, invoice_registered, withholding_enabled, override_rate`

// Coach returns ErrCoachNotFound if id is unknown.
func (s *Store) Coach(ctx context.Context, id generic.CoachID) (generic.Coach, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+coachColumns+` FROM coaches WHERE id = ?`, string(id))
	c, err := scanCoach(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Coach{}, generic.ErrCoachNotFound
	}
	if err != nil {
		return generic.Coach{}, fmt.Errorf("failed to get coach: %w", err)
	}
	return c, nil
}

// Coaches returns all coaches ordered by name.
func (s *Store) Coaches(ctx context.Context) ([]generic.Coach, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+coachColumns+` FROM coaches ORDER BY full_name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list coaches: %w", err)
	}
	defer rows.Close()

	var coaches []generic.Coach
	for rows.Next() {
		c, err := scanCoach(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coach: %w", err)
		}
		coaches = append(coaches, c)
	}
	return coaches, rows.Err()
}

// SaveCoach inserts or replaces a coach.
func (s *Store) SaveCoach(ctx context.Context, c generic.Coach) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coaches (`+coachColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			email = excluded.email,
			created_at = excluded.created_at,
			invoice_registered = excluded.invoice_registered,
			withholding_enabled = excluded.withholding_enabled,
			override_rate = excluded.override_rate
	`,
		string(c.ID), c.FullName, c.Email, nullTime(c.CreatedAt),
		c.InvoiceRegistered, c.WithholdingEnabled, c.OverrideRate,
	)
	if err != nil {
		return fmt.Errorf("failed to save coach: %w", err)
	}
	return nil
}

// SaveTaxSettings updates the tax flags of an existing coach.
func (s *Store) SaveTaxSettings(ctx context.Context, id generic.CoachID, ts generic.TaxSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE coaches SET invoice_registered = ?, withholding_enabled = ? WHERE id = ?`,
		ts.InvoiceRegistered, ts.WithholdingEnabled, string(id))
	if err != nil {
		return fmt.Errorf("failed to save tax settings: %w", err)
	}
	return requireAffected(res, generic.ErrCoachNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCoach(row scanner) (generic.Coach, error) {
	var (
		c         generic.Coach
		createdAt sql.NullString
	)
	if err := row.Scan(&c.ID, &c.FullName, &c.Email, &createdAt,
		&c.InvoiceRegistered, &c.WithholdingEnabled, &c.OverrideRate); err != nil {
		return generic.Coach{}, err
	}
	if createdAt.Valid {
		c.CreatedAt = parseTime(createdAt.String)
	}
	return c, nil
}

// =============================================================================
// PAYOUT STORE (generic.PayoutStore interface)
// =============================================================================

const payoutColumns = `id, coach_id, target_month, amount, status, paid_at, note, idempotency_key, created_by, created_at, updated_at`

// Payouts returns matching transactions ordered by creation time.
func (s *Store) Payouts(ctx context.Context, q generic.PayoutQuery) ([]generic.PayoutTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE (? = '' OR coach_id = ?)
		  AND (? = '' OR target_month = ?)
		  AND (? = '' OR status = ?)
		ORDER BY created_at, rowid
	`,
		string(q.CoachID), string(q.CoachID),
		string(q.TargetMonth), string(q.TargetMonth),
		string(q.Status), string(q.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []generic.PayoutTransaction
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// GetPayout returns ErrPayoutNotFound if id is unknown.
func (s *Store) GetPayout(ctx context.Context, id generic.PayoutID) (generic.PayoutTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = ?`, string(id))
	p, err := scanPayout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.PayoutTransaction{}, generic.ErrPayoutNotFound
	}
	if err != nil {
		return generic.PayoutTransaction{}, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// InsertPayout records a payout. A repeated idempotency key returns
// ErrDuplicateIdempotencyKey; an unknown coach returns ErrCoachNotFound.
func (s *Store) InsertPayout(ctx context.Context, p generic.PayoutTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payouts (`+payoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(p.ID), string(p.CoachID), string(p.TargetMonth), int64(p.Amount), string(p.Status),
		nullTimePtr(p.PaidAt), p.Note, nullString(p.IdempotencyKey), p.CreatedBy,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		switch {
		case isConstraint(err, sqlite3.ErrConstraintUnique) && strings.Contains(err.Error(), "idempotency_key"):
			return generic.ErrDuplicateIdempotencyKey
		case isConstraint(err, sqlite3.ErrConstraintForeignKey):
			return generic.ErrCoachNotFound
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

// UpdatePayoutStatus sets status and paid_at of an existing payout.
func (s *Store) UpdatePayoutStatus(ctx context.Context, id generic.PayoutID, status generic.PayoutStatus, paidAt *time.Time, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payouts SET status = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
		string(status), nullTimePtr(paidAt), formatTime(at), string(id))
	if err != nil {
		return fmt.Errorf("failed to update payout: %w", err)
	}
	return requireAffected(res, generic.ErrPayoutNotFound)
}

// DeletePayout removes a payout.
func (s *Store) DeletePayout(ctx context.Context, id generic.PayoutID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM payouts WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete payout: %w", err)
	}
	return requireAffected(res, generic.ErrPayoutNotFound)
}

func scanPayout(row scanner) (generic.PayoutTransaction, error) {
	var (
		p                    generic.PayoutTransaction
		paidAt, key          sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.CoachID, &p.TargetMonth, &p.Amount, &p.Status,
		&paidAt, &p.Note, &key, &p.CreatedBy, &createdAt, &updatedAt); err != nil {
		return generic.PayoutTransaction{}, err
	}
	if paidAt.Valid {
		t := parseTime(paidAt.String)
		p.PaidAt = &t
	}
	p.IdempotencyKey = key.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// SEEDING - Catalogue, students and lessons (demo scenarios and tests)
// =============================================================================

// SaveLessonMaster inserts or replaces a catalogue entry.
func (s *Store) SaveLessonMaster(ctx context.Context, m generic.LessonMaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO lesson_masters (id, title, unit_price, is_trial)
		VALUES (?, ?, ?, ?)
	`, string(m.ID), m.Title, int64(m.UnitPrice), m.IsTrial)
	if err != nil {
		return fmt.Errorf("failed to save lesson master: %w", err)
	}
	return nil
}

// DeleteLessonMaster removes a catalogue entry. Lessons that referenced it
// are kept and read back without a master.
func (s *Store) DeleteLessonMaster(ctx context.Context, id generic.LessonMasterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM lesson_masters WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete lesson master: %w", err)
	}
	return nil
}

// SaveMembership inserts or replaces a membership and its reward
// configuration, keeping the configured order.
func (s *Store) SaveMembership(ctx context.Context, m generic.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memberships (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, string(m.ID), m.Name); err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM membership_lesson_rewards WHERE membership_id = ?`, string(m.ID)); err != nil {
		return fmt.Errorf("failed to clear lesson rewards: %w", err)
	}
	for i, lr := range m.LessonRewards {
		var price any
		if lr.RewardPrice != nil {
			price = int64(*lr.RewardPrice)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO membership_lesson_rewards (membership_id, lesson_master_id, reward_price, position)
			VALUES (?, ?, ?, ?)
		`, string(m.ID), string(lr.LessonMasterID), price, i); err != nil {
			return fmt.Errorf("failed to save lesson reward: %w", err)
		}
	}
	return tx.Commit()
}

// SaveStudent inserts or replaces a student. The membership, if any, must
// already be saved.
func (s *Store) SaveStudent(ctx context.Context, st generic.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var membershipID any
	if st.Membership != nil {
		membershipID = string(st.Membership.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO students (id, full_name, is_two_person_lesson, membership_id)
		VALUES (?, ?, ?, ?)
	`, string(st.ID), st.FullName, st.IsTwoPersonLesson, membershipID)
	if err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}
	return nil
}

// SaveLessons inserts or replaces lessons atomically. Only the master and
// student IDs are stored; save those records separately.
func (s *Store) SaveLessons(ctx context.Context, lessons ...generic.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, l := range lessons {
		var masterID, studentID any
		if l.Master != nil {
			masterID = string(l.Master.ID)
		}
		if l.Student != nil {
			studentID = string(l.Student.ID)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO lessons (id, coach_id, lesson_date, price, lesson_master_id, student_id)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(l.ID), string(l.CoachID), formatTime(l.LessonDate), int64(l.Price), masterID, studentID)
		if err != nil {
			if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
				return fmt.Errorf("lesson %s: %w", l.ID, generic.ErrCoachNotFound)
			}
			return fmt.Errorf("failed to save lesson: %w", err)
		}
	}
	return tx.Commit()
}

// Reset deletes all data. Used when loading a demo scenario.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"payouts", "lessons", "students", "membership_lesson_rewards",
		"memberships", "lesson_masters", "coaches",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Rows written by other tools may use plain RFC 3339.
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == code
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
