package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fossbin/propease/internal/database"
	"github.com/fossbin/propease/internal/models"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store backed by PostgreSQL with PostGIS.
type PostgresStore struct {
	db *database.Database
}

// NewPostgresStore creates a Store over an open pool. The schema is expected
// to have been migrated with database.Migrate.
func NewPostgresStore(db *database.Database) *PostgresStore {
	return &PostgresStore{db: db}
}

type pgScope struct {
	q querier
}

func (sc pgScope) Properties() PropertyRepository      { return pgProperties{sc.q} }
func (sc pgScope) Applications() ApplicationRepository { return pgApplications{sc.q} }
func (sc pgScope) Transactions() TransactionRepository { return pgTransactions{sc.q} }

// Properties returns the property repository outside any unit of work.
func (s *PostgresStore) Properties() PropertyRepository { return pgProperties{s.db.Pool} }

// Applications returns the application repository outside any unit of work.
func (s *PostgresStore) Applications() ApplicationRepository { return pgApplications{s.db.Pool} }

// Transactions returns the transaction repository outside any unit of work.
func (s *PostgresStore) Transactions() TransactionRepository { return pgTransactions{s.db.Pool} }

// WithinTx runs fn in a database transaction, committing when fn returns nil.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(r Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.db.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(pgScope{q: tx})
	})
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func affectedOne(tag pgconn.CommandTag, what string, id uuid.UUID) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", ErrMissing, what, id)
	}
	return nil
}

// whereBuilder accumulates AND-ed predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Properties -----------------------------------------------------------------

const propertyColumns = `
	id, owner_id, title, description, type, kind, status, approval,
	rejection_reason, photos, price, capacity, occupancy, negotiable, verified,
	address_line, city, state, country, zipcode, ST_AsGeoJSON(geom),
	created_at, updated_at`

type pgProperties struct{ q querier }

func scanProperty(row pgx.Row) (*models.Property, error) {
	var (
		p        models.Property
		price    int64
		geomJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Type, &p.Kind, &p.Status, &p.Approval,
		&p.RejectionReason, &p.Photos, &price, &p.Capacity, &p.Occupancy, &p.Negotiable, &p.Verified,
		&p.Location.AddressLine, &p.Location.City, &p.Location.State, &p.Location.Country, &p.Location.Zipcode, &geomJSON,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Price = models.Money(price)
	if err := p.Location.Point.Scan(geomJSON); err != nil {
		return nil, fmt.Errorf("failed to parse location for property %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r pgProperties) Create(ctx context.Context, p *models.Property) error {
	geom, err := p.Location.Point.Value()
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO properties (
			id, owner_id, title, description, type, kind, status, approval,
			rejection_reason, photos, price, capacity, occupancy, negotiable, verified,
			address_line, city, state, country, zipcode, geom, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, ST_SetSRID(ST_GeomFromGeoJSON($21), 4326), $22, $23
		)`,
		p.ID, p.OwnerID, p.Title, p.Description, p.Type, p.Kind, p.Status, p.Approval,
		p.RejectionReason, nonNil(p.Photos), int64(p.Price), p.Capacity, p.Occupancy, p.Negotiable, p.Verified,
		p.Location.AddressLine, p.Location.City, p.Location.State, p.Location.Country, p.Location.Zipcode, geom,
		p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: property %s already exists", ErrConflict, p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert property %s: %w", p.ID, err)
	}
	return nil
}

func (r pgProperties) get(ctx context.Context, id uuid.UUID, lock string) (*models.Property, error) {
	p, err := scanProperty(r.q.QueryRow(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query property %s: %w", id, err)
	}
	return p, nil
}

func (r pgProperties) Get(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.get(ctx, id, "")
}

func (r pgProperties) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r pgProperties) Update(ctx context.Context, p *models.Property) error {
	geom, err := p.Location.Point.Value()
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE properties SET
			title = $2, description = $3, type = $4, kind = $5, status = $6, approval = $7,
			rejection_reason = $8, photos = $9, price = $10, capacity = $11, occupancy = $12,
			negotiable = $13, verified = $14, address_line = $15, city = $16, state = $17,
			country = $18, zipcode = $19, geom = ST_SetSRID(ST_GeomFromGeoJSON($20), 4326),
			updated_at = $21
		WHERE id = $1`,
		p.ID, p.Title, p.Description, p.Type, p.Kind, p.Status, p.Approval,
		p.RejectionReason, nonNil(p.Photos), int64(p.Price), p.Capacity, p.Occupancy,
		p.Negotiable, p.Verified, p.Location.AddressLine, p.Location.City, p.Location.State,
		p.Location.Country, p.Location.Zipcode, geom, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update property %s: %w", p.ID, err)
	}
	return affectedOne(tag, "property", p.ID)
}

// List filters in SQL. The radius filter uses ST_DWithin on geography so the
// distance is in meters; PostGIS takes (lng, lat).
func (r pgProperties) List(ctx context.Context, f models.PropertyFilter) ([]models.Property, error) {
	var w whereBuilder
	if f.OwnerID != "" {
		w.add("owner_id = ?", f.OwnerID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Approval != "" {
		w.add("approval = ?", f.Approval)
	}
	if f.Type != "" {
		w.add("type = ?", f.Type)
	}
	if f.Kind != "" {
		w.add("kind = ?", f.Kind)
	}
	if f.Verified != nil {
		w.add("verified = ?", *f.Verified)
	}
	if f.Near != nil {
		w.add("ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography, ?)",
			f.Near.Center.Lng(), f.Near.Center.Lat(), f.Near.Meters)
	}

	rows, err := r.q.Query(ctx, `SELECT `+propertyColumns+` FROM properties`+w.String()+` ORDER BY created_at DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	defer rows.Close()

	out := []models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}
	return out, nil
}

// Applications ---------------------------------------------------------------

const applicationColumns = `
	id, property_id, applicant_id, message, bid, term_start, term_end, cadence,
	documents, status, auto_rejected, decided_by, decided_at, rejection_reason,
	transaction_id, created_at`

type pgApplications struct{ q querier }

func scanApplication(row pgx.Row) (*models.Application, error) {
	var (
		a   models.Application
		bid *int64
	)
	err := row.Scan(
		&a.ID, &a.PropertyID, &a.ApplicantID, &a.Message, &bid, &a.Terms.Start, &a.Terms.End, &a.Terms.Cadence,
		&a.Documents, &a.Status, &a.AutoRejected, &a.DecidedBy, &a.DecidedAt, &a.RejectionReason,
		&a.TransactionID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bid != nil {
		m := models.Money(*bid)
		a.Bid = &m
	}
	return &a, nil
}

func moneyPtr(m *models.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}

func (r pgApplications) Create(ctx context.Context, a *models.Application) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO applications (
			id, property_id, applicant_id, message, bid, term_start, term_end, cadence,
			documents, status, auto_rejected, decided_by, decided_at, rejection_reason,
			transaction_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.PropertyID, a.ApplicantID, a.Message, moneyPtr(a.Bid), a.Terms.Start, a.Terms.End, a.Terms.Cadence,
		nonNil(a.Documents), a.Status, a.AutoRejected, a.DecidedBy, a.DecidedAt, a.RejectionReason,
		a.TransactionID, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: application %s already exists", ErrConflict, a.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert application %s: %w", a.ID, err)
	}
	return nil
}

func (r pgApplications) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	a, err := scanApplication(r.q.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query application %s: %w", id, err)
	}
	return a, nil
}

func (r pgApplications) Update(ctx context.Context, a *models.Application) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE applications SET
			message = $2, bid = $3, term_start = $4, term_end = $5, cadence = $6, documents = $7,
			status = $8, auto_rejected = $9, decided_by = $10, decided_at = $11,
			rejection_reason = $12, transaction_id = $13
		WHERE id = $1`,
		a.ID, a.Message, moneyPtr(a.Bid), a.Terms.Start, a.Terms.End, a.Terms.Cadence, nonNil(a.Documents),
		a.Status, a.AutoRejected, a.DecidedBy, a.DecidedAt, a.RejectionReason, a.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update application %s: %w", a.ID, err)
	}
	return affectedOne(tag, "application", a.ID)
}

func (r pgApplications) List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	var w whereBuilder
	if f.PropertyID != nil {
		w.add("property_id = ?", *f.PropertyID)
	}
	if f.ApplicantID != "" {
		w.add("applicant_id = ?", f.ApplicantID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}

	rows, err := r.q.Query(ctx, `SELECT `+applicationColumns+` FROM applications`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	out := []models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application rows: %w", err)
	}
	return out, nil
}

// Transactions ---------------------------------------------------------------

const transactionColumns = `
	id, property_id, application_id, counterparty_id, owner_id, kind, created_at,
	start_date, end_date, cadence, agreement_ref, amount, last_paid_period,
	terminated_at, terminated_by, terminated_role, termination_reason,
	sale_date, deed_ref, sale_price`

// transactionRow is the flattened form of the Transaction union.
type transactionRow struct {
	startDate, endDate, terminatedAt, saleDate *time.Time
	cadence, agreementRef                      string
	terminatedBy, terminatedRole, reason       string
	deedRef                                    string
	amount, salePrice                          int64
	lastPaid                                   int
}

func flatten(t *models.Transaction) transactionRow {
	var row transactionRow
	if ten := t.Tenancy; ten != nil {
		start, end := ten.StartDate, ten.EndDate
		row.startDate, row.endDate = &start, &end
		row.cadence = string(ten.Cadence)
		row.agreementRef = ten.AgreementRef
		row.amount = int64(ten.Amount)
		row.lastPaid = ten.LastPaidPeriod
		if term := ten.Termination; term != nil {
			at := term.At
			row.terminatedAt = &at
			row.terminatedBy = term.By
			row.terminatedRole = string(term.Role)
			row.reason = term.Reason
		}
	}
	if s := t.Sale; s != nil {
		date := s.SaleDate
		row.saleDate = &date
		row.deedRef = s.DeedRef
		row.salePrice = int64(s.Price)
	}
	return row
}

type pgTransactions struct{ q querier }

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t models.Transaction
		f transactionRow
	)
	err := row.Scan(
		&t.ID, &t.PropertyID, &t.ApplicationID, &t.CounterpartyID, &t.OwnerID, &t.Kind, &t.CreatedAt,
		&f.startDate, &f.endDate, &f.cadence, &f.agreementRef, &f.amount, &f.lastPaid,
		&f.terminatedAt, &f.terminatedBy, &f.terminatedRole, &f.reason,
		&f.saleDate, &f.deedRef, &f.salePrice,
	)
	if err != nil {
		return nil, err
	}

	switch t.Kind {
	case models.KindSale:
		if f.saleDate == nil {
			return nil, fmt.Errorf("transaction %s: sale without sale date", t.ID)
		}
		t.Sale = &models.SaleRecord{SaleDate: *f.saleDate, DeedRef: f.deedRef, Price: models.Money(f.salePrice)}
	default:
		if f.startDate == nil || f.endDate == nil {
			return nil, fmt.Errorf("transaction %s: tenancy without dates", t.ID)
		}
		t.Tenancy = &models.Tenancy{
			StartDate:      *f.startDate,
			EndDate:        *f.endDate,
			Cadence:        models.Cadence(f.cadence),
			AgreementRef:   f.agreementRef,
			Amount:         models.Money(f.amount),
			LastPaidPeriod: f.lastPaid,
		}
		if f.terminatedAt != nil {
			t.Tenancy.Termination = &models.Termination{
				At:     *f.terminatedAt,
				By:     f.terminatedBy,
				Role:   models.TerminatorRole(f.terminatedRole),
				Reason: f.reason,
			}
		}
	}
	return &t, t.Check()
}

func (r pgTransactions) Create(ctx context.Context, t *models.Transaction) error {
	if err := t.Check(); err != nil {
		return err
	}
	f := flatten(t)
	_, err := r.q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		t.ID, t.PropertyID, t.ApplicationID, t.CounterpartyID, t.OwnerID, t.Kind, t.CreatedAt,
		f.startDate, f.endDate, f.cadence, f.agreementRef, f.amount, f.lastPaid,
		f.terminatedAt, f.terminatedBy, f.terminatedRole, f.reason,
		f.saleDate, f.deedRef, f.salePrice,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: property %s already has an active transaction", ErrConflict, t.PropertyID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r pgTransactions) get(ctx context.Context, id uuid.UUID, lock string) (*models.Transaction, error) {
	t, err := scanTransaction(r.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w", id, err)
	}
	return t, nil
}

func (r pgTransactions) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.get(ctx, id, "")
}

func (r pgTransactions) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

// Update writes the mutable tenancy fields. Identity, kind and sale payload never change.
func (r pgTransactions) Update(ctx context.Context, t *models.Transaction) error {
	if err := t.Check(); err != nil {
		return err
	}
	f := flatten(t)
	tag, err := r.q.Exec(ctx, `
		UPDATE transactions SET
			last_paid_period = $2, terminated_at = $3, terminated_by = $4,
			terminated_role = $5, termination_reason = $6
		WHERE id = $1`,
		t.ID, f.lastPaid, f.terminatedAt, f.terminatedBy, f.terminatedRole, f.reason,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", t.ID, err)
	}
	return affectedOne(tag, "transaction", t.ID)
}

func (r pgTransactions) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	var w whereBuilder
	if f.PropertyID != nil {
		w.add("property_id = ?", *f.PropertyID)
	}
	if f.CounterpartyID != "" {
		w.add("counterparty_id = ?", f.CounterpartyID)
	}
	if f.Kind != "" {
		w.add("kind = ?", f.Kind)
	}
	if f.ActiveOnly {
		w.add("(kind = 'Sale' OR terminated_at IS NULL)")
	}

	rows, err := r.q.Query(ctx, `SELECT `+transactionColumns+` FROM transactions`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return out, nil
}

func (r pgTransactions) RecordPayment(ctx context.Context, p *models.Payment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payments (id, transaction_id, period_id, amount, late_fee, paid_at, paid_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.TransactionID, p.PeriodID, int64(p.Amount), int64(p.LateFee), p.PaidAt, p.PaidBy,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: period %d of transaction %s already paid", ErrConflict, p.PeriodID, p.TransactionID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment for transaction %s: %w", p.TransactionID, err)
	}
	return nil
}

func (r pgTransactions) Payments(ctx context.Context, transactionID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, transaction_id, period_id, amount, late_fee, paid_at, paid_by
		FROM payments WHERE transaction_id = $1 ORDER BY period_id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for transaction %s: %w", transactionID, err)
	}
	defer rows.Close()

	out := []models.Payment{}
	for rows.Next() {
		var (
			p           models.Payment
			amount, fee int64
		)
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.PeriodID, &amount, &fee, &p.PaidAt, &p.PaidBy); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		p.Amount, p.LateFee = models.Money(amount), models.Money(fee)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
