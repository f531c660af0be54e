package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var bookColumns = []string{"id", "title", "author", "status"}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	q, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlxGet(ctx, r, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrBookNotFound
		}
		return model.Book{}, errors.Wrap(err, "GetBook")
	}
	return book, nil
}

func (r *repository) BookExists(ctx context.Context, id int) (bool, error) {
	return r.exists(ctx, booksTableName, id)
}

func (r *repository) InsertBook(ctx context.Context, title, author string) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("title", "author", "status").
		Values(title, author, model.BookAvailable).
		Suffix("returning id, title, author, status").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlxGet(ctx, r, &book, q, args...); err != nil {
		r.log.Error("InsertBook", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		if pgCode(err) == pgerrcode.UniqueViolation {
			return model.Book{}, errs.ErrAlreadyExists
		}
		return model.Book{}, errors.Wrap(err, "InsertBook")
	}
	return book, nil
}

// UpdateBook edits title/author of a book that is not soft-deleted.
func (r *repository) UpdateBook(ctx context.Context, id int, title, author string) (bool, error) {
	q, args, err := qb.Update(booksTableName).
		Set("title", title).
		Set("author", author).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": model.BookDeleted}).
		ToSql()
	if err != nil {
		return false, err
	}
	ok, err := r.exec(ctx, q, args...)
	if err != nil {
		return false, errors.Wrap(err, "UpdateBook")
	}
	return ok, nil
}

func (r *repository) DeleteBook(ctx context.Context, id int) (bool, error) {
	q, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, err
	}
	ok, err := r.exec(ctx, q, args...)
	if err != nil {
		if pgCode(err) == pgerrcode.ForeignKeyViolation {
			return false, errs.ErrHasDependentRecords
		}
		return false, errors.Wrap(err, "DeleteBook")
	}
	return ok, nil
}

// SwapBookStatus moves a book from one status to another in a single statement.
// It reports false when the book does not exist or is not in status from.
func (r *repository) SwapBookStatus(ctx context.Context, id int, from, to model.BookStatus) (bool, error) {
	q := fmt.Sprintf(`update %s set status = $1 where id = $2 and status = $3`, booksTableName)
	ok, err := r.exec(ctx, q, to, id, from)
	if err != nil {
		return false, errors.Wrapf(err, "SwapBookStatus %s->%s", from, to)
	}
	return ok, nil
}

// RetireBorrowedBook soft-deletes a borrowed book and returns its row as it was retired.
func (r *repository) RetireBorrowedBook(ctx context.Context, id int) (model.Book, bool, error) {
	q := fmt.Sprintf(`update %s set status = $1 where id = $2 and status = $3
	returning id, title, author, status`, booksTableName)

	var book model.Book
	if err := sqlxGet(ctx, r, &book, q, model.BookDeleted, id, model.BookBorrowed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, false, nil
		}
		return model.Book{}, false, errors.Wrap(err, "RetireBorrowedBook")
	}
	return book, true, nil
}
