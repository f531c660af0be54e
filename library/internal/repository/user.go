package repository

import (
	"context"
	"fmt"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

func (r *repository) InsertUser(ctx context.Context, u model.User) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("username", "password", "role", "is_active").
		Values(u.Username, u.Password, u.Role, u.IsActive).
		Suffix("returning id, username, password, role, is_active").
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := sqlxGet(ctx, r, &user, q, args...); err != nil {
		if pgCode(err) == pgerrcode.UniqueViolation {
			return model.User{}, errs.ErrAlreadyExists
		}
		return model.User{}, errors.Wrap(err, "InsertUser")
	}
	return user, nil
}

func (r *repository) UserExists(ctx context.Context, id int) (bool, error) {
	return r.exists(ctx, usersTableName, id)
}

func (r *repository) SetUserActive(ctx context.Context, id int, active bool) (bool, error) {
	q, args, err := qb.Update(usersTableName).
		Set("is_active", active).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, err
	}
	ok, err := r.exec(ctx, q, args...)
	if err != nil {
		return false, errors.Wrap(err, "SetUserActive")
	}
	return ok, nil
}

func (r *repository) DeleteUser(ctx context.Context, id int) (bool, error) {
	q, args, err := qb.Delete(usersTableName).
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
		return false, errors.Wrap(err, "DeleteUser")
	}
	return ok, nil
}

func (r *repository) HasUnpaidFines(ctx context.Context, userID int) (bool, error) {
	q := fmt.Sprintf(`select exists(select 1 from %s
	where user_id = $1 and fine_amount > 0 and not fine_paid)`, loansTableName)
	var unpaid bool
	if err := r.ext.QueryRowxContext(ctx, q, userID).Scan(&unpaid); err != nil {
		return false, errors.Wrap(err, "HasUnpaidFines")
	}
	return unpaid, nil
}
