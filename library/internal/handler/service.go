package handler

import (
	"context"

	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/Astemirdum/library-loans/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	Borrow(ctx context.Context, bookID, userID int) (model.Loan, error)
	Return(ctx context.Context, bookID, userID int) error
	AssessOverdueFine(ctx context.Context, loanID int, fineAmount float64) error
	ResolveLoss(ctx context.Context, bookID int, kind model.LossResolution, amount float64) (model.Book, error)

	GetBook(ctx context.Context, id int) (model.Book, error)
	AddBook(ctx context.Context, title, author string) (model.Book, error)
	UpdateBook(ctx context.Context, id int, title, author string) error
	DeleteBook(ctx context.Context, id int) error

	GetLoan(ctx context.Context, id int) (model.LoanView, error)
	PayFine(ctx context.Context, loanID int) error

	AddUser(ctx context.Context, username, password, role string) (model.User, error)
	SetUserActive(ctx context.Context, id int, active bool) error
	DeleteUser(ctx context.Context, id int) error
}

var _ LibraryService = (*service.Service)(nil)
