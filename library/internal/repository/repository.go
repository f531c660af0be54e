package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

// Store is the set of statements the services run, either directly or inside InTx.
// Conditional writes report whether their WHERE predicate matched; that flag is the
// only signal of whether the precondition held.
type Store interface {
	GetBook(ctx context.Context, id int) (model.Book, error)
	BookExists(ctx context.Context, id int) (bool, error)
	InsertBook(ctx context.Context, title, author string) (model.Book, error)
	UpdateBook(ctx context.Context, id int, title, author string) (bool, error)
	DeleteBook(ctx context.Context, id int) (bool, error)
	SwapBookStatus(ctx context.Context, id int, from, to model.BookStatus) (bool, error)
	RetireBorrowedBook(ctx context.Context, id int) (model.Book, bool, error)

	GetLoan(ctx context.Context, id int) (model.Loan, error)
	LoanExists(ctx context.Context, id int) (bool, error)
	InsertLoan(ctx context.Context, bookID, userID int, at time.Time) (model.Loan, error)
	CloseBorrowerLoan(ctx context.Context, bookID, userID int, at time.Time) (int, bool, error)
	CloseActiveBookLoan(ctx context.Context, bookID int, c LoanClosure) (int, bool, error)
	CloseLoan(ctx context.Context, loanID int, c LoanClosure, activeOnly bool) (int, bool, error)
	MarkFinePaid(ctx context.Context, loanID int) (bool, error)

	InsertUser(ctx context.Context, u model.User) (model.User, error)
	UserExists(ctx context.Context, id int) (bool, error)
	SetUserActive(ctx context.Context, id int, active bool) (bool, error)
	DeleteUser(ctx context.Context, id int) (bool, error)
	HasUnpaidFines(ctx context.Context, userID int) (bool, error)
}

type Repository interface {
	Store
	// InTx runs fn in one transaction: commit when fn returns nil, rollback on error or panic.
	InTx(ctx context.Context, fn func(Store) error) error
}

// LoanClosure is the terminal write applied to an active loan.
type LoanClosure struct {
	At         time.Time
	FineAmount float64
	Resolution model.Resolution
}

type repository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	return &repository{
		db:  db,
		ext: db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName = `books`
	loansTableName = `borrow_records`
	usersTableName = `users`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) InTx(ctx context.Context, fn func(Store) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Error("tx.Rollback", zap.Error(rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = errors.Wrap(cErr, "commit tx")
		}
	}()

	return fn(&repository{db: r.db, ext: tx, log: r.log})
}

func (r *repository) exec(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.ext.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "RowsAffected")
	}
	return n > 0, nil
}

// returningID runs a conditional write ending in `returning id`; no row means the predicate did not match.
func (r *repository) returningID(ctx context.Context, q string, args ...any) (int, bool, error) {
	var id int
	if err := r.ext.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

func (r *repository) exists(ctx context.Context, table string, id int) (bool, error) {
	q := fmt.Sprintf(`select exists(select 1 from %s where id = $1)`, table)
	var ok bool
	if err := r.ext.QueryRowxContext(ctx, q, id).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "exists %s", table)
	}
	return ok, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func pgConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func sqlxGet(ctx context.Context, r *repository, dest any, q string, args ...any) error {
	return sqlx.GetContext(ctx, r.ext, dest, q, args...)
}
