package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(sqlx.NewDb(db, "sqlmock"), zap.NewNop())
	require.NoError(t, err)
	return repo, mock
}

var loanRowColumns = []string{"id", "book_id", "user_id", "borrow_time", "return_time", "fine_amount", "fine_paid", "resolution"}

func TestRepository_InTx_Commit(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`update books set status = \$1 where id = \$2 and status = \$3`).
		WithArgs("已借出", 1, "可借阅").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO borrow_records`).
		WithArgs(1, 5, now).
		WillReturnRows(sqlmock.NewRows(loanRowColumns).AddRow(10, 1, 5, now, nil, 0.0, false, nil))
	mock.ExpectCommit()

	var loan model.Loan
	err := repo.InTx(ctx, func(s Store) error {
		ok, err := s.SwapBookStatus(ctx, 1, model.BookAvailable, model.BookBorrowed)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrBookNotAvailable
		}
		loan, err = s.InsertLoan(ctx, 1, 5, now)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 10, loan.ID)
	require.True(t, loan.Active())
	require.Equal(t, model.ResolutionNone, loan.Resolution)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InTx_RollbackOnFailedPrecondition(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`update books set status = \$1 where id = \$2 and status = \$3`).
		WithArgs("已借出", 1, "可借阅").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.InTx(ctx, func(s Store) error {
		ok, err := s.SwapBookStatus(ctx, 1, model.BookAvailable, model.BookBorrowed)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrBookNotAvailable
		}
		return nil
	})
	require.ErrorIs(t, err, errs.ErrBookNotAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InTx_RollbackOnPanic(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	require.Panics(t, func() {
		_ = repo.InTx(context.Background(), func(Store) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InTx_CommitFailureIsPersistence(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(context.DeadlineExceeded)

	err := repo.InTx(context.Background(), func(Store) error { return nil })
	require.Error(t, err)
	require.Equal(t, errs.KindPersistence, errs.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertLoan_ErrorTranslation(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		pgErr   *pgconn.PgError
		wantErr error
	}{
		{
			name:    "unknown user",
			pgErr:   &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "borrow_records_user_id_fkey"},
			wantErr: errs.ErrUserNotFound,
		},
		{
			name:    "second active loan",
			pgErr:   &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: activeLoanIndex},
			wantErr: errs.ErrBookNotAvailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectQuery(`INSERT INTO borrow_records`).
				WithArgs(4, 99, now).
				WillReturnError(tt.pgErr)

			_, err := repo.InsertLoan(context.Background(), 4, 99, now)
			require.ErrorIs(t, err, tt.wantErr)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_CloseBorrowerLoan(t *testing.T) {
	now := time.Now().UTC()

	t.Run("borrower", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`update borrow_records set return_time = \$1\s+where book_id = \$2 and user_id = \$3 and return_time is null\s+returning id`).
			WithArgs(now, 1, 5).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

		loanID, ok, err := repo.CloseBorrowerLoan(context.Background(), 1, 5, now)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 10, loanID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("someone else", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`update borrow_records set return_time = \$1\s+where book_id = \$2 and user_id = \$3 and return_time is null\s+returning id`).
			WithArgs(now, 1, 6).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, ok, err := repo.CloseBorrowerLoan(context.Background(), 1, 6, now)
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_CloseLoan(t *testing.T) {
	now := time.Now().UTC()
	closure := LoanClosure{At: now, FineAmount: 25, Resolution: model.ResolutionOverdueFine}

	t.Run("active only", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`where id = \$4 and return_time is null returning book_id`).
			WithArgs(now, 25.0, "超期罚款处理", 3).
			WillReturnRows(sqlmock.NewRows([]string{"book_id"}).AddRow(2))

		bookID, ok, err := repo.CloseLoan(context.Background(), 3, closure, true)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 2, bookID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("legacy unguarded, missing loan", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`where id = \$4 returning book_id`).
			WithArgs(now, 25.0, "超期罚款处理", 404).
			WillReturnRows(sqlmock.NewRows([]string{"book_id"}))

		_, ok, err := repo.CloseLoan(context.Background(), 404, closure, false)
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_CloseActiveBookLoan(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`update borrow_records set return_time = \$1, fine_amount = \$2, resolution = \$3\s+where book_id = \$4 and return_time is null\s+returning id`).
		WithArgs(now, 0.0, "新书替换(旧书已删/新书已上架)", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	loanID, ok, err := repo.CloseActiveBookLoan(context.Background(), 3, LoanClosure{At: now, Resolution: model.ResolutionLossReplacement})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 12, loanID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RetireBorrowedBook(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`update books set status = \$1 where id = \$2 and status = \$3\s+returning id, title, author, status`).
		WithArgs("已删除", 3, "已借出").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "status"}).AddRow(3, "T", "A", "已删除"))

	book, ok, err := repo.RetireBorrowedBook(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.Book{ID: 3, Title: "T", Author: "A", Status: model.BookDeleted}, book)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetBook(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, title, author, status FROM books WHERE id = \$1`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "status"}).AddRow(2, "T", "A", "遗失"))
	mock.ExpectQuery(`SELECT id, title, author, status FROM books WHERE id = \$1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "status"}))

	book, err := repo.GetBook(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, model.BookLost, book.Status)

	_, err = repo.GetBook(context.Background(), 9)
	require.ErrorIs(t, err, errs.ErrBookNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteBook_WithLoans(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM books WHERE id = \$1`).
		WithArgs(1).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

	_, err := repo.DeleteBook(context.Background(), 1)
	require.ErrorIs(t, err, errs.ErrHasDependentRecords)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertUser_Duplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "hash", "reader", true).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	_, err := repo.InsertUser(context.Background(), model.User{Username: "alice", Password: "hash", Role: "reader", IsActive: true})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FinesAndExistence(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`select exists\(select 1 from borrow_records\s+where user_id = \$1 and fine_amount > 0 and not fine_paid\)`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`update borrow_records set fine_paid = true\s+where id = \$1 and return_time is not null and fine_amount > 0 and not fine_paid`).
		WithArgs(12).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`select exists\(select 1 from books where id = \$1\)`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	unpaid, err := repo.HasUnpaidFines(ctx, 7)
	require.NoError(t, err)
	require.True(t, unpaid)

	paid, err := repo.MarkFinePaid(ctx, 12)
	require.NoError(t, err)
	require.True(t, paid)

	exists, err := repo.BookExists(ctx, 5)
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
