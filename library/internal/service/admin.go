package service

import (
	"context"
	"strings"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/Astemirdum/library-loans/library/internal/repository"
	"github.com/Astemirdum/library-loans/pkg/auth"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

func (s *Service) AddBook(ctx context.Context, title, author string) (book model.Book, err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opAddBook, BookID: book.ID}, err)
	}()

	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return model.Book{}, errs.Validation("title and author are required")
	}
	book, err = s.repo.InsertBook(ctx, title, author)
	if err != nil {
		return model.Book{}, errors.Wrap(err, "add book")
	}
	return book, nil
}

// UpdateBook edits title and author; deleted books are read-only.
func (s *Service) UpdateBook(ctx context.Context, id int, title, author string) (err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opUpdateBook, BookID: id}, err)
	}()

	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if id <= 0 {
		return errs.Validation("book id must be positive")
	}
	if title == "" || author == "" {
		return errs.Validation("title and author are required")
	}
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.UpdateBook(ctx, id, title, author)
		if err != nil {
			return err
		}
		if !ok {
			return bookMissingOr(ctx, tx, id, errs.ErrBookDeleted)
		}
		return nil
	})
	return errors.Wrapf(err, "update book %d", id)
}

// DeleteBook removes a book that has never been loaned.
func (s *Service) DeleteBook(ctx context.Context, id int) (err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opDeleteBook, BookID: id}, err)
	}()

	if id <= 0 {
		return errs.Validation("book id must be positive")
	}
	ok, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "delete book %d", id)
	}
	if !ok {
		return errors.Wrapf(errs.ErrBookNotFound, "delete book %d", id)
	}
	return nil
}

func (s *Service) AddUser(ctx context.Context, username, password, role string) (user model.User, err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opAddUser, UserID: user.ID}, err)
	}()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, errs.Validation("username and password are required")
	}
	switch role {
	case "":
		role = auth.RoleReader
	case auth.RoleReader, auth.RoleAdmin:
	default:
		return model.User{}, errs.Validation("role must be admin or reader")
	}
	// bcrypt only looks at the first 72 bytes
	if len(password) > 72 {
		return model.User{}, errs.Validation("password is too long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "hash password")
	}
	user, err = s.repo.InsertUser(ctx, model.User{
		Username: username,
		Password: string(hash),
		Role:     role,
		IsActive: true,
	})
	if err != nil {
		return model.User{}, errors.Wrapf(err, "add user %q", username)
	}
	return user, nil
}

// SetUserActive toggles a user's account. A user with an unpaid fine cannot be deactivated.
func (s *Service) SetUserActive(ctx context.Context, id int, active bool) (err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opSetUserActive, UserID: id}, err)
	}()

	if id <= 0 {
		return errs.Validation("user id must be positive")
	}
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		if !active {
			if err := noUnpaidFines(ctx, tx, id); err != nil {
				return err
			}
		}
		ok, err := tx.SetUserActive(ctx, id, active)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrUserNotFound
		}
		return nil
	})
	return errors.Wrapf(err, "set user %d active=%t", id, active)
}

func (s *Service) DeleteUser(ctx context.Context, id int) (err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opDeleteUser, UserID: id}, err)
	}()

	if id <= 0 {
		return errs.Validation("user id must be positive")
	}
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		if err := noUnpaidFines(ctx, tx, id); err != nil {
			return err
		}
		ok, err := tx.DeleteUser(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrUserNotFound
		}
		return nil
	})
	return errors.Wrapf(err, "delete user %d", id)
}

// PayFine settles the fine recorded on a closed loan.
func (s *Service) PayFine(ctx context.Context, loanID int) (err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opPayFine, LoanID: loanID}, err)
	}()

	if loanID <= 0 {
		return errs.Validation("loan id must be positive")
	}
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.MarkFinePaid(ctx, loanID)
		if err != nil {
			return err
		}
		if !ok {
			return loanMissingOr(ctx, tx, loanID, errs.ErrNoOutstandingFine)
		}
		return nil
	})
	return errors.Wrapf(err, "pay fine on loan %d", loanID)
}

func noUnpaidFines(ctx context.Context, tx repository.Store, userID int) error {
	unpaid, err := tx.HasUnpaidFines(ctx, userID)
	if err != nil {
		return err
	}
	if unpaid {
		return errs.ErrUnpaidFines
	}
	return nil
}
