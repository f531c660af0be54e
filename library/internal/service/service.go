package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/Astemirdum/library-loans/library/internal/repository"
	"github.com/Astemirdum/library-loans/pkg/auth"
	"github.com/Astemirdum/library-loans/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	opBorrow        = "borrow"
	opReturn        = "return"
	opOverdueFine   = "assess_overdue_fine"
	opResolveLoss   = "resolve_loss"
	opAddBook       = "add_book"
	opUpdateBook    = "update_book"
	opDeleteBook    = "delete_book"
	opAddUser       = "add_user"
	opSetUserActive = "set_user_active"
	opDeleteUser    = "delete_user"
	opPayFine       = "pay_fine"
)

type AuditSink interface {
	Record(ctx context.Context, e model.AuditEvent) error
}

type Options struct {
	LoanPeriod time.Duration
	FinePerDay float64
	// LegacyOverdue assesses overdue fines against any loan id, closed or not,
	// and leaves the book status untouched.
	LegacyOverdue bool
}

type Service struct {
	log   *zap.Logger
	repo  repository.Repository
	audit AuditSink
	opts  Options
	now   func() time.Time
}

func NewService(repo repository.Repository, audit AuditSink, opts Options, log *zap.Logger) *Service {
	return &Service{
		log:   log.Named("service"),
		repo:  repo,
		audit: audit,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// finish reports a completed operation to metrics, the log and the audit sink.
// It runs after the transaction has ended, so nothing here can undo a commit.
func (s *Service) finish(ctx context.Context, started time.Time, ev model.AuditEvent, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errs.KindOf(err))
	}
	metrics.RecordOperation(ev.Op, outcome, time.Since(started))

	if p, pErr := auth.GetPrincipal(ctx); pErr == nil {
		ev.Actor = p.UserID
	}
	ev.ID = uuid.New()
	ev.Time = s.now()
	ev.OK = err == nil
	if err != nil {
		ev.Reason = err.Error()
	}

	switch {
	case err == nil:
		s.log.Debug(ev.Op, zap.Int("book_id", ev.BookID), zap.Int("loan_id", ev.LoanID))
	case errs.IsPersistence(err):
		s.log.Error(ev.Op, zap.Error(err))
	default:
		s.log.Info(ev.Op+" rejected", zap.String("kind", outcome), zap.Error(err))
	}

	if s.audit == nil {
		return
	}
	if aErr := s.audit.Record(ctx, ev); aErr != nil {
		metrics.RecordAuditDropped()
		s.log.Warn("audit", zap.Error(aErr), zap.String("event", ev.String()))
	}
}

// bookMissingOr resolves a failed status swap: the book is absent, or it exists
// in a state that makes the operation a business-rule violation.
func bookMissingOr(ctx context.Context, tx repository.Store, bookID int, violation error) error {
	exists, err := tx.BookExists(ctx, bookID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.ErrBookNotFound
	}
	return violation
}

func loanMissingOr(ctx context.Context, tx repository.Store, loanID int, violation error) error {
	exists, err := tx.LoanExists(ctx, loanID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.ErrLoanNotFound
	}
	return violation
}

func (s *Service) GetBook(ctx context.Context, id int) (model.Book, error) {
	if id <= 0 {
		return model.Book{}, errs.Validation("book id must be positive")
	}
	return s.repo.GetBook(ctx, id)
}

func (s *Service) GetLoan(ctx context.Context, id int) (model.LoanView, error) {
	if id <= 0 {
		return model.LoanView{}, errs.Validation("loan id must be positive")
	}
	loan, err := s.repo.GetLoan(ctx, id)
	if err != nil {
		return model.LoanView{}, err
	}
	return model.NewLoanView(loan, s.now(), s.opts.LoanPeriod, s.opts.FinePerDay), nil
}
