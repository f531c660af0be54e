package service

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/Astemirdum/library-loans/library/internal/repository"
	"github.com/Astemirdum/library-loans/pkg/auth"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	repo_mocks "github.com/Astemirdum/library-loans/library/internal/repository/mocks"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	events []model.AuditEvent
	err    error
}

func (r *recordingSink) Record(_ context.Context, e model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingSink) last() model.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc   *Service
	repo  *repo_mocks.MockRepository
	store *repo_mocks.MockStore
	sink  *recordingSink
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	c := gomock.NewController(t)
	repo := repo_mocks.NewMockRepository(c)
	store := repo_mocks.NewMockStore(c)
	repo.EXPECT().InTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func(repository.Store) error) error {
			return fn(store)
		}).AnyTimes()

	sink := &recordingSink{}
	svc := NewService(repo, sink, opts, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, repo: repo, store: store, sink: sink}
}

func asReader(id int) context.Context {
	return auth.SetAuthContext(context.Background(), id, auth.RoleReader)
}

func asAdmin() context.Context {
	return auth.SetAuthContext(context.Background(), 1, auth.RoleAdmin)
}

func TestService_Borrow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		bookID   int
		userID   int
		behavior func(s *repo_mocks.MockStore)
		wantErr  error
		wantKind errs.Kind
	}{
		{
			name:   "ok",
			bookID: 1,
			userID: 5,
			behavior: func(s *repo_mocks.MockStore) {
				s.EXPECT().SwapBookStatus(gomock.Any(), 1, model.BookAvailable, model.BookBorrowed).Return(true, nil)
				s.EXPECT().InsertLoan(gomock.Any(), 1, 5, testNow).
					Return(model.Loan{ID: 10, BookID: 1, UserID: 5, BorrowTime: testNow}, nil)
			},
		},
		{
			name:   "book already borrowed",
			bookID: 1,
			userID: 6,
			behavior: func(s *repo_mocks.MockStore) {
				s.EXPECT().SwapBookStatus(gomock.Any(), 1, model.BookAvailable, model.BookBorrowed).Return(false, nil)
				s.EXPECT().BookExists(gomock.Any(), 1).Return(true, nil)
			},
			wantErr:  errs.ErrBookNotAvailable,
			wantKind: errs.KindBusinessRule,
		},
		{
			name:   "unknown book",
			bookID: 404,
			userID: 5,
			behavior: func(s *repo_mocks.MockStore) {
				s.EXPECT().SwapBookStatus(gomock.Any(), 404, model.BookAvailable, model.BookBorrowed).Return(false, nil)
				s.EXPECT().BookExists(gomock.Any(), 404).Return(false, nil)
			},
			wantErr:  errs.ErrBookNotFound,
			wantKind: errs.KindNotFound,
		},
		{
			name:     "bad id",
			bookID:   0,
			userID:   5,
			behavior: func(s *repo_mocks.MockStore) {},
			wantKind: errs.KindValidation,
		},
		{
			name:   "storage failure",
			bookID: 1,
			userID: 5,
			behavior: func(s *repo_mocks.MockStore) {
				s.EXPECT().SwapBookStatus(gomock.Any(), 1, model.BookAvailable, model.BookBorrowed).
					Return(false, errors.New("connection reset"))
			},
			wantKind: errs.KindPersistence,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Options{})
			tt.behavior(f.store)

			loan, err := f.svc.Borrow(asReader(tt.userID), tt.bookID, tt.userID)
			ev := f.sink.last()
			require.Equal(t, opBorrow, ev.Op)
			require.Equal(t, tt.userID, ev.Actor)
			if tt.wantKind == "" {
				require.NoError(t, err)
				require.Equal(t, 10, loan.ID)
				require.True(t, loan.Active())
				require.True(t, ev.OK)
				require.Equal(t, 10, ev.LoanID)
				return
			}
			require.Error(t, err)
			require.Equal(t, tt.wantKind, errs.KindOf(err))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			require.Zero(t, loan)
			require.False(t, ev.OK)
			require.NotEmpty(t, ev.Reason)
		})
	}
}

// The conditional status swap is the only arbiter; the mock store applies it atomically
// the way a single UPDATE row lock would.
func TestService_Borrow_ConcurrentCallersOneWins(t *testing.T) {
	f := newFixture(t, Options{})
	var borrowed atomic.Bool
	f.store.EXPECT().SwapBookStatus(gomock.Any(), 1, model.BookAvailable, model.BookBorrowed).
		DoAndReturn(func(context.Context, int, model.BookStatus, model.BookStatus) (bool, error) {
			return borrowed.CompareAndSwap(false, true), nil
		}).AnyTimes()
	f.store.EXPECT().BookExists(gomock.Any(), 1).Return(true, nil).AnyTimes()
	f.store.EXPECT().InsertLoan(gomock.Any(), 1, gomock.Any(), testNow).
		DoAndReturn(func(_ context.Context, bookID, userID int, at time.Time) (model.Loan, error) {
			return model.Loan{ID: 1, BookID: bookID, UserID: userID, BorrowTime: at}, nil
		}).Times(1)

	const callers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			_, err := f.svc.Borrow(asReader(userID), 1, userID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, errs.ErrBookNotAvailable):
				rejected.Add(1)
			}
		}(i + 1)
	}
	wg.Wait()

	require.EqualValues(t, 1, successes.Load())
	require.EqualValues(t, callers-1, rejected.Load())
}

func TestService_Return(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		gomock.InOrder(
			f.store.EXPECT().CloseBorrowerLoan(gomock.Any(), 1, 5, testNow).Return(10, true, nil),
			f.store.EXPECT().SwapBookStatus(gomock.Any(), 1, model.BookBorrowed, model.BookAvailable).Return(true, nil),
		)

		require.NoError(t, f.svc.Return(asReader(5), 1, 5))
		ev := f.sink.last()
		require.True(t, ev.OK)
		require.Equal(t, 10, ev.LoanID)
		require.Equal(t, 1, ev.BookID)
	})

	t.Run("not the borrower", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseBorrowerLoan(gomock.Any(), 1, 6, testNow).Return(0, false, nil)

		err := f.svc.Return(asReader(6), 1, 6)
		require.ErrorIs(t, err, errs.ErrNotBorrowerOrAlreadyReturned)
		require.True(t, errs.IsBusinessRule(err))
		require.Zero(t, f.sink.last().LoanID)
	})

	t.Run("book left borrowed state meanwhile", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseBorrowerLoan(gomock.Any(), 2, 5, testNow).Return(11, true, nil)
		f.store.EXPECT().SwapBookStatus(gomock.Any(), 2, model.BookBorrowed, model.BookAvailable).Return(false, nil)

		require.NoError(t, f.svc.Return(asReader(5), 2, 5))
	})
}

func TestService_AssessOverdueFine(t *testing.T) {
	t.Parallel()
	closure := repository.LoanClosure{At: testNow, FineAmount: 25, Resolution: model.ResolutionOverdueFine}

	t.Run("closes loan and releases book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		gomock.InOrder(
			f.store.EXPECT().CloseLoan(gomock.Any(), 3, closure, true).Return(2, true, nil),
			f.store.EXPECT().SwapBookStatus(gomock.Any(), 2, model.BookBorrowed, model.BookAvailable).Return(true, nil),
		)

		require.NoError(t, f.svc.AssessOverdueFine(asAdmin(), 3, 25))
		ev := f.sink.last()
		require.Equal(t, 2, ev.BookID)
		require.Equal(t, 25.0, ev.Amount)
	})

	t.Run("loan already closed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseLoan(gomock.Any(), 3, closure, true).Return(0, false, nil)
		f.store.EXPECT().LoanExists(gomock.Any(), 3).Return(true, nil)

		require.ErrorIs(t, f.svc.AssessOverdueFine(asAdmin(), 3, 25), errs.ErrLoanAlreadyClosed)
	})

	t.Run("unknown loan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseLoan(gomock.Any(), 404, closure, true).Return(0, false, nil)
		f.store.EXPECT().LoanExists(gomock.Any(), 404).Return(false, nil)

		err := f.svc.AssessOverdueFine(asAdmin(), 404, 25)
		require.ErrorIs(t, err, errs.ErrLoanNotFound)
		require.True(t, errs.IsNotFound(err))
	})

	t.Run("non positive amount", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		require.True(t, errs.IsValidation(f.svc.AssessOverdueFine(asAdmin(), 3, 0)))
		require.True(t, errs.IsValidation(f.svc.AssessOverdueFine(asAdmin(), 3, -1)))
	})

	t.Run("amount rounded to cents", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		rounded := repository.LoanClosure{At: testNow, FineAmount: 12.35, Resolution: model.ResolutionOverdueFine}
		f.store.EXPECT().CloseLoan(gomock.Any(), 3, rounded, true).Return(2, true, nil)
		f.store.EXPECT().SwapBookStatus(gomock.Any(), 2, model.BookBorrowed, model.BookAvailable).Return(true, nil)

		require.NoError(t, f.svc.AssessOverdueFine(asAdmin(), 3, 12.349))
		require.Equal(t, 12.35, f.sink.last().Amount)
	})

	t.Run("largest storable amount", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		top := repository.LoanClosure{At: testNow, FineAmount: 99999999.99, Resolution: model.ResolutionOverdueFine}
		f.store.EXPECT().CloseLoan(gomock.Any(), 3, top, true).Return(2, true, nil)
		f.store.EXPECT().SwapBookStatus(gomock.Any(), 2, model.BookBorrowed, model.BookAvailable).Return(true, nil)

		require.NoError(t, f.svc.AssessOverdueFine(asAdmin(), 3, 99999999.99))
	})

	t.Run("legacy leaves book untouched", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{LegacyOverdue: true})
		f.store.EXPECT().CloseLoan(gomock.Any(), 3, closure, false).Return(2, true, nil)

		require.NoError(t, f.svc.AssessOverdueFine(asAdmin(), 3, 25))
	})

	t.Run("legacy unknown loan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{LegacyOverdue: true})
		f.store.EXPECT().CloseLoan(gomock.Any(), 404, closure, false).Return(0, false, nil)

		require.ErrorIs(t, f.svc.AssessOverdueFine(asAdmin(), 404, 25), errs.ErrLoanNotFound)
	})
}

func TestFineCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      float64
		want    float64
		invalid bool
	}{
		{name: "whole", in: 25, want: 25},
		{name: "rounds up", in: 12.346, want: 12.35},
		{name: "smallest", in: 0.01, want: 0.01},
		{name: "half a cent rounds to one", in: 0.005, want: 0.01},
		{name: "largest", in: 99999999.99, want: 99999999.99},
		{name: "below a cent", in: 0.004, invalid: true},
		{name: "zero", in: 0, invalid: true},
		{name: "negative", in: -3, invalid: true},
		{name: "overflows column", in: 1e9, invalid: true},
		{name: "rounds past column", in: 99999999.999, invalid: true},
		{name: "nan", in: math.NaN(), invalid: true},
		{name: "inf", in: math.Inf(1), invalid: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := fineCents(tt.in, "fine")
			if tt.invalid {
				require.True(t, errs.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestService_ResolveLoss_Fine(t *testing.T) {
	t.Parallel()
	closure := repository.LoanClosure{At: testNow, FineAmount: 50, Resolution: model.ResolutionLossFine}

	t.Run("closes loan before the book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		gomock.InOrder(
			f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 2, closure).Return(7, true, nil),
			f.store.EXPECT().SwapBookStatus(gomock.Any(), 2, model.BookBorrowed, model.BookLost).Return(true, nil),
			f.store.EXPECT().GetBook(gomock.Any(), 2).Return(model.Book{ID: 2, Title: "T", Author: "A", Status: model.BookLost}, nil),
		)

		book, err := f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 50)
		require.NoError(t, err)
		require.Equal(t, model.BookLost, book.Status)
		ev := f.sink.last()
		require.Equal(t, 7, ev.LoanID)
		require.Zero(t, ev.NewBookID)
	})

	t.Run("book not borrowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 2, closure).Return(0, false, nil)
		f.store.EXPECT().GetBook(gomock.Any(), 2).Return(model.Book{ID: 2, Status: model.BookAvailable}, nil)

		_, err := f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 50)
		require.ErrorIs(t, err, errs.ErrBookNotBorrowed)
	})

	t.Run("unknown book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 9, closure).Return(0, false, nil)
		f.store.EXPECT().GetBook(gomock.Any(), 9).Return(model.Book{}, errs.ErrBookNotFound)

		_, err := f.svc.ResolveLoss(asAdmin(), 9, model.LossFine, 50)
		require.True(t, errs.IsNotFound(err))
	})

	t.Run("borrowed without active loan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 2, closure).Return(0, false, nil)
		f.store.EXPECT().GetBook(gomock.Any(), 2).Return(model.Book{ID: 2, Status: model.BookBorrowed}, nil)

		_, err := f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 50)
		require.ErrorIs(t, err, errs.ErrNoActiveLoan)
	})

	t.Run("book moved after loan closed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 2, closure).Return(7, true, nil)
		f.store.EXPECT().SwapBookStatus(gomock.Any(), 2, model.BookBorrowed, model.BookLost).Return(false, nil)

		_, err := f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 50)
		require.ErrorIs(t, err, errs.ErrBookNotBorrowed)
	})

	t.Run("amount required", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		_, err := f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 0)
		require.True(t, errs.IsValidation(err))
	})

	t.Run("amount beyond column", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		_, err := f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 1e9)
		require.True(t, errs.IsValidation(err))
		_, err = f.svc.ResolveLoss(asAdmin(), 2, model.LossFine, 0.004)
		require.True(t, errs.IsValidation(err))
	})
}

func TestService_ResolveLoss_Replacement(t *testing.T) {
	t.Parallel()
	closure := repository.LoanClosure{At: testNow, Resolution: model.ResolutionLossReplacement}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		gomock.InOrder(
			f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 3, closure).Return(8, true, nil),
			f.store.EXPECT().RetireBorrowedBook(gomock.Any(), 3).
				Return(model.Book{ID: 3, Title: "T", Author: "A", Status: model.BookDeleted}, true, nil),
			f.store.EXPECT().InsertBook(gomock.Any(), "T", "A").
				Return(model.Book{ID: 4, Title: "T", Author: "A", Status: model.BookAvailable}, nil),
		)

		book, err := f.svc.ResolveLoss(asAdmin(), 3, model.LossReplacement, 0)
		require.NoError(t, err)
		require.Equal(t, model.Book{ID: 4, Title: "T", Author: "A", Status: model.BookAvailable}, book)
		ev := f.sink.last()
		require.Equal(t, 3, ev.BookID)
		require.Equal(t, 8, ev.LoanID)
		require.Equal(t, 4, ev.NewBookID)
	})

	t.Run("available book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 3, closure).Return(0, false, nil)
		f.store.EXPECT().GetBook(gomock.Any(), 3).Return(model.Book{ID: 3, Status: model.BookAvailable}, nil)

		_, err := f.svc.ResolveLoss(asAdmin(), 3, model.LossReplacement, 0)
		require.ErrorIs(t, err, errs.ErrBookNotBorrowed)
	})

	t.Run("book moved after loan closed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().CloseActiveBookLoan(gomock.Any(), 3, closure).Return(8, true, nil)
		f.store.EXPECT().RetireBorrowedBook(gomock.Any(), 3).Return(model.Book{}, false, nil)

		_, err := f.svc.ResolveLoss(asAdmin(), 3, model.LossReplacement, 0)
		require.ErrorIs(t, err, errs.ErrBookNotBorrowed)
		require.Zero(t, f.sink.last().NewBookID)
	})

	t.Run("amount rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		_, err := f.svc.ResolveLoss(asAdmin(), 3, model.LossReplacement, 10)
		require.True(t, errs.IsValidation(err))
	})

	t.Run("unknown resolution", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		_, err := f.svc.ResolveLoss(asAdmin(), 3, model.LossUnknown, 0)
		require.True(t, errs.IsValidation(err))
	})
}

func TestService_Admin(t *testing.T) {
	t.Parallel()

	t.Run("update deleted book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().UpdateBook(gomock.Any(), 3, "T", "A").Return(false, nil)
		f.store.EXPECT().BookExists(gomock.Any(), 3).Return(true, nil)

		require.ErrorIs(t, f.svc.UpdateBook(asAdmin(), 3, " T ", "A"), errs.ErrBookDeleted)
	})

	t.Run("delete unknown book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.repo.EXPECT().DeleteBook(gomock.Any(), 9).Return(false, nil)

		require.ErrorIs(t, f.svc.DeleteBook(asAdmin(), 9), errs.ErrBookNotFound)
	})

	t.Run("add book requires title", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		_, err := f.svc.AddBook(asAdmin(), "  ", "A")
		require.True(t, errs.IsValidation(err))
	})

	t.Run("add user hashes password", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.repo.EXPECT().InsertUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u model.User) (model.User, error) {
				require.Equal(t, "alice", u.Username)
				require.Equal(t, auth.RoleReader, u.Role)
				require.True(t, u.IsActive)
				require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret")))
				u.ID = 7
				return u, nil
			})

		user, err := f.svc.AddUser(asAdmin(), "alice", "secret", "")
		require.NoError(t, err)
		require.Equal(t, 7, user.ID)
	})

	t.Run("deactivate with unpaid fine", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().HasUnpaidFines(gomock.Any(), 5).Return(true, nil)

		require.ErrorIs(t, f.svc.SetUserActive(asAdmin(), 5, false), errs.ErrUnpaidFines)
	})

	t.Run("activate skips fine check", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().SetUserActive(gomock.Any(), 5, true).Return(true, nil)

		require.NoError(t, f.svc.SetUserActive(asAdmin(), 5, true))
	})

	t.Run("delete unknown user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().HasUnpaidFines(gomock.Any(), 8).Return(false, nil)
		f.store.EXPECT().DeleteUser(gomock.Any(), 8).Return(false, nil)

		require.ErrorIs(t, f.svc.DeleteUser(asAdmin(), 8), errs.ErrUserNotFound)
	})

	t.Run("pay fine without outstanding fine", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Options{})
		f.store.EXPECT().MarkFinePaid(gomock.Any(), 4).Return(false, nil)
		f.store.EXPECT().LoanExists(gomock.Any(), 4).Return(true, nil)

		require.ErrorIs(t, f.svc.PayFine(asAdmin(), 4), errs.ErrNoOutstandingFine)
	})
}

func TestService_GetLoan_View(t *testing.T) {
	f := newFixture(t, Options{LoanPeriod: 14 * 24 * time.Hour, FinePerDay: 0.5})
	borrowed := testNow.Add(-16 * 24 * time.Hour)
	f.repo.EXPECT().GetLoan(gomock.Any(), 1).Return(model.Loan{ID: 1, BookID: 2, UserID: 5, BorrowTime: borrowed}, nil)

	view, err := f.svc.GetLoan(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, view.Overdue)
	require.Equal(t, 2, view.OverdueDays)
	require.InDelta(t, 1.0, view.SuggestedFine, 1e-9)
}

func TestService_AuditFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, Options{})
	f.sink.err = errors.New("broker down")
	f.store.EXPECT().CloseBorrowerLoan(gomock.Any(), 1, 5, testNow).Return(10, true, nil)
	f.store.EXPECT().SwapBookStatus(gomock.Any(), 1, model.BookBorrowed, model.BookAvailable).Return(true, nil)

	require.NoError(t, f.svc.Return(asReader(5), 1, 5))
}
