package service

import (
	"context"
	"math"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/Astemirdum/library-loans/library/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Every operation that touches both rows writes the loan before the book,
// so concurrent operations on one book queue on the loan row instead of deadlocking.
// Borrow is the exception: it has no loan row until the book row is held.

// Borrow moves an available book to borrowed and opens a loan for userID.
// Of any number of concurrent calls for one book at most one succeeds.
func (s *Service) Borrow(ctx context.Context, bookID, userID int) (loan model.Loan, err error) {
	started := time.Now()
	defer func() {
		s.finish(ctx, started, model.AuditEvent{Op: opBorrow, BookID: bookID, UserID: userID, LoanID: loan.ID}, err)
	}()

	if bookID <= 0 || userID <= 0 {
		return model.Loan{}, errs.Validation("book id and user id must be positive")
	}
	now := s.now()
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.SwapBookStatus(ctx, bookID, model.BookAvailable, model.BookBorrowed)
		if err != nil {
			return err
		}
		if !ok {
			return bookMissingOr(ctx, tx, bookID, errs.ErrBookNotAvailable)
		}
		loan, err = tx.InsertLoan(ctx, bookID, userID, now)
		return err
	})
	if err != nil {
		return model.Loan{}, errors.Wrapf(err, "borrow book %d", bookID)
	}
	return loan, nil
}

// Return closes the caller's active loan on bookID and makes the book available again.
func (s *Service) Return(ctx context.Context, bookID, userID int) (err error) {
	started := time.Now()
	ev := model.AuditEvent{Op: opReturn, BookID: bookID, UserID: userID}
	defer func() {
		s.finish(ctx, started, ev, err)
	}()

	if bookID <= 0 || userID <= 0 {
		return errs.Validation("book id and user id must be positive")
	}
	now := s.now()
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		loanID, ok, err := tx.CloseBorrowerLoan(ctx, bookID, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errs.ErrNotBorrowerOrAlreadyReturned
		}
		ev.LoanID = loanID
		released, err := tx.SwapBookStatus(ctx, bookID, model.BookBorrowed, model.BookAvailable)
		if err != nil {
			return err
		}
		if !released {
			// the loan is closed either way; a book outside borrowed keeps its status
			s.log.Warn("return: book was not borrowed", zap.Int("book_id", bookID))
		}
		return nil
	})
	return errors.Wrapf(err, "return book %d", bookID)
}

// AssessOverdueFine closes loanID with an overdue fine.
func (s *Service) AssessOverdueFine(ctx context.Context, loanID int, fineAmount float64) (err error) {
	started := time.Now()
	ev := model.AuditEvent{Op: opOverdueFine, LoanID: loanID, Amount: fineAmount}
	defer func() {
		s.finish(ctx, started, ev, err)
	}()

	if loanID <= 0 {
		return errs.Validation("loan id must be positive")
	}
	amount, err := fineCents(fineAmount, "fine amount")
	if err != nil {
		return err
	}
	ev.Amount = amount
	closure := repository.LoanClosure{
		At:         s.now(),
		FineAmount: amount,
		Resolution: model.ResolutionOverdueFine,
	}
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		if s.opts.LegacyOverdue {
			bookID, ok, err := tx.CloseLoan(ctx, loanID, closure, false)
			if err != nil {
				return err
			}
			if !ok {
				return errs.ErrLoanNotFound
			}
			ev.BookID = bookID
			return nil
		}

		bookID, ok, err := tx.CloseLoan(ctx, loanID, closure, true)
		if err != nil {
			return err
		}
		if !ok {
			return loanMissingOr(ctx, tx, loanID, errs.ErrLoanAlreadyClosed)
		}
		ev.BookID = bookID
		released, err := tx.SwapBookStatus(ctx, bookID, model.BookBorrowed, model.BookAvailable)
		if err != nil {
			return err
		}
		if !released {
			s.log.Warn("overdue fine: book was not borrowed", zap.Int("book_id", bookID), zap.Int("loan_id", loanID))
		}
		return nil
	})
	return errors.Wrapf(err, "assess overdue fine on loan %d", loanID)
}

// ResolveLoss settles a borrowed book that was lost. With LossFine the book becomes
// lost and the loan carries amount. With LossReplacement the book is retired, a copy
// with the same title and author is shelved, and the copy is returned.
func (s *Service) ResolveLoss(ctx context.Context, bookID int, kind model.LossResolution, amount float64) (book model.Book, err error) {
	started := time.Now()
	ev := model.AuditEvent{Op: opResolveLoss, BookID: bookID, Amount: amount}
	defer func() {
		s.finish(ctx, started, ev, err)
	}()

	if bookID <= 0 {
		return model.Book{}, errs.Validation("book id must be positive")
	}
	switch kind {
	case model.LossFine:
		if amount, err = fineCents(amount, "loss fine amount"); err != nil {
			return model.Book{}, err
		}
		ev.Amount = amount
	case model.LossReplacement:
		if amount != 0 {
			return model.Book{}, errs.Validation("replacement carries no fine amount")
		}
	default:
		return model.Book{}, errs.Validation("unknown loss resolution")
	}

	now := s.now()
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		var err error
		if kind == model.LossFine {
			book, err = s.lossFine(ctx, tx, bookID, repository.LoanClosure{
				At:         now,
				FineAmount: amount,
				Resolution: model.ResolutionLossFine,
			}, &ev)
		} else {
			book, err = s.lossReplacement(ctx, tx, bookID, repository.LoanClosure{
				At:         now,
				Resolution: model.ResolutionLossReplacement,
			}, &ev)
		}
		return err
	})
	if err != nil {
		return model.Book{}, errors.Wrapf(err, "resolve loss of book %d", bookID)
	}
	return book, nil
}

// closeLostLoan closes the active loan of a lost book. When there is none it tells
// a missing book and a book that is not out on loan apart from a borrowed book
// that somehow has no loan.
func closeLostLoan(ctx context.Context, tx repository.Store, bookID int, c repository.LoanClosure) (int, error) {
	loanID, ok, err := tx.CloseActiveBookLoan(ctx, bookID, c)
	if err != nil {
		return 0, err
	}
	if ok {
		return loanID, nil
	}
	book, err := tx.GetBook(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if book.Status != model.BookBorrowed {
		return 0, errs.ErrBookNotBorrowed
	}
	return 0, errs.ErrNoActiveLoan
}

func (s *Service) lossFine(ctx context.Context, tx repository.Store, bookID int, c repository.LoanClosure, ev *model.AuditEvent) (model.Book, error) {
	loanID, err := closeLostLoan(ctx, tx, bookID, c)
	if err != nil {
		return model.Book{}, err
	}
	ev.LoanID = loanID
	ok, err := tx.SwapBookStatus(ctx, bookID, model.BookBorrowed, model.BookLost)
	if err != nil {
		return model.Book{}, err
	}
	if !ok {
		return model.Book{}, errs.ErrBookNotBorrowed
	}
	return tx.GetBook(ctx, bookID)
}

func (s *Service) lossReplacement(ctx context.Context, tx repository.Store, bookID int, c repository.LoanClosure, ev *model.AuditEvent) (model.Book, error) {
	loanID, err := closeLostLoan(ctx, tx, bookID, c)
	if err != nil {
		return model.Book{}, err
	}
	ev.LoanID = loanID
	old, ok, err := tx.RetireBorrowedBook(ctx, bookID)
	if err != nil {
		return model.Book{}, err
	}
	if !ok {
		return model.Book{}, errs.ErrBookNotBorrowed
	}
	replacement, err := tx.InsertBook(ctx, old.Title, old.Author)
	if err != nil {
		return model.Book{}, err
	}
	ev.NewBookID = replacement.ID
	s.log.Debug("replacement shelved", zap.Int("old_book_id", bookID), zap.Int("book_id", replacement.ID))
	return replacement, nil
}

// fine_amount is numeric(10,2)
const (
	minFine = 0.01
	maxFine = 99999999.99
)

// fineCents rounds v to cents and checks that the result is a storable, positive fine.
func fineCents(v float64, what string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errs.Validation(what + " must be a number")
	}
	cents := math.Round(v*100) / 100
	if cents < minFine {
		return 0, errs.Validation(what + " must be at least 0.01")
	}
	if cents > maxFine {
		return 0, errs.Validation(what + " must not exceed 99999999.99")
	}
	return cents, nil
}
