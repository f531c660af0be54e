package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const activeLoanIndex = `borrow_records_active_book_uidx`

var loanColumns = []string{"id", "book_id", "user_id", "borrow_time", "return_time", "fine_amount", "fine_paid", "resolution"}

func (r *repository) GetLoan(ctx context.Context, id int) (model.Loan, error) {
	q, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}

	var loan model.Loan
	if err := sqlxGet(ctx, r, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrLoanNotFound
		}
		return model.Loan{}, errors.Wrap(err, "GetLoan")
	}
	return loan, nil
}

func (r *repository) LoanExists(ctx context.Context, id int) (bool, error) {
	return r.exists(ctx, loansTableName, id)
}

func (r *repository) InsertLoan(ctx context.Context, bookID, userID int, at time.Time) (model.Loan, error) {
	q, args, err := qb.Insert(loansTableName).
		Columns("book_id", "user_id", "borrow_time").
		Values(bookID, userID, at).
		Suffix("returning " + strings.Join(loanColumns, ", ")).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}

	var loan model.Loan
	if err := sqlxGet(ctx, r, &loan, q, args...); err != nil {
		switch pgCode(err) {
		case pgerrcode.ForeignKeyViolation:
			return model.Loan{}, errs.ErrUserNotFound
		case pgerrcode.UniqueViolation:
			if pgConstraint(err) == activeLoanIndex {
				return model.Loan{}, errs.ErrBookNotAvailable
			}
			return model.Loan{}, errs.ErrAlreadyExists
		}
		r.log.Error("InsertLoan", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Loan{}, errors.Wrap(err, "InsertLoan")
	}
	return loan, nil
}

// CloseBorrowerLoan closes the active loan of bookID only if userID is its borrower
// and returns the closed loan id.
func (r *repository) CloseBorrowerLoan(ctx context.Context, bookID, userID int, at time.Time) (int, bool, error) {
	q := fmt.Sprintf(`update %s set return_time = $1
	where book_id = $2 and user_id = $3 and return_time is null
	returning id`, loansTableName)
	loanID, ok, err := r.returningID(ctx, q, at, bookID, userID)
	if err != nil {
		return 0, false, errors.Wrap(err, "CloseBorrowerLoan")
	}
	return loanID, ok, nil
}

// CloseActiveBookLoan applies c to the active loan of bookID and returns the closed loan id.
func (r *repository) CloseActiveBookLoan(ctx context.Context, bookID int, c LoanClosure) (int, bool, error) {
	q := fmt.Sprintf(`update %s set return_time = $1, fine_amount = $2, resolution = $3
	where book_id = $4 and return_time is null
	returning id`, loansTableName)
	loanID, ok, err := r.returningID(ctx, q, c.At, c.FineAmount, c.Resolution, bookID)
	if err != nil {
		return 0, false, errors.Wrap(err, "CloseActiveBookLoan")
	}
	return loanID, ok, nil
}

// CloseLoan closes a loan by id and returns its book id. With activeOnly unset an
// already closed loan is overwritten.
func (r *repository) CloseLoan(ctx context.Context, loanID int, c LoanClosure, activeOnly bool) (int, bool, error) {
	q := fmt.Sprintf(`update %s set return_time = $1, fine_amount = $2, resolution = $3
	where id = $4`, loansTableName)
	if activeOnly {
		q += ` and return_time is null`
	}
	q += ` returning book_id`

	bookID, ok, err := r.returningID(ctx, q, c.At, c.FineAmount, c.Resolution, loanID)
	if err != nil {
		return 0, false, errors.Wrap(err, "CloseLoan")
	}
	return bookID, ok, nil
}

func (r *repository) MarkFinePaid(ctx context.Context, loanID int) (bool, error) {
	q := fmt.Sprintf(`update %s set fine_paid = true
	where id = $1 and return_time is not null and fine_amount > 0 and not fine_paid`, loansTableName)
	ok, err := r.exec(ctx, q, loanID)
	if err != nil {
		return false, errors.Wrap(err, "MarkFinePaid")
	}
	return ok, nil
}
