package model

import (
	"math"
	"time"
)

type Book struct {
	ID     int        `json:"id" db:"id"`
	Title  string     `json:"title" db:"title"`
	Author string     `json:"author" db:"author"`
	Status BookStatus `json:"status" db:"status"`
}

// Loan is a row of borrow_records. A loan is active while ReturnTime is nil.
type Loan struct {
	ID         int        `json:"id" db:"id"`
	BookID     int        `json:"bookId" db:"book_id"`
	UserID     int        `json:"userId" db:"user_id"`
	BorrowTime time.Time  `json:"borrowTime" db:"borrow_time"`
	ReturnTime *time.Time `json:"returnTime,omitempty" db:"return_time"`
	FineAmount float64    `json:"fineAmount" db:"fine_amount"`
	FinePaid   bool       `json:"finePaid" db:"fine_paid"`
	Resolution Resolution `json:"resolution" db:"resolution"`
}

func (l Loan) Active() bool {
	return l.ReturnTime == nil
}

func (l Loan) DueTime(loanPeriod time.Duration) time.Time {
	return l.BorrowTime.Add(loanPeriod)
}

// Overdue reports whether an active loan is past its due time at now.
func (l Loan) Overdue(now time.Time, loanPeriod time.Duration) bool {
	return l.Active() && now.After(l.DueTime(loanPeriod))
}

// OverdueDays counts started days past due; zero for loans that are not overdue.
func (l Loan) OverdueDays(now time.Time, loanPeriod time.Duration) int {
	if !l.Overdue(now, loanPeriod) {
		return 0
	}
	late := now.Sub(l.DueTime(loanPeriod))
	return int(math.Ceil(late.Hours() / 24))
}

func (l Loan) SuggestedFine(now time.Time, loanPeriod time.Duration, finePerDay float64) float64 {
	return float64(l.OverdueDays(now, loanPeriod)) * finePerDay
}

// LoanView is a loan with its due-date arithmetic evaluated at read time.
type LoanView struct {
	Loan          `json:",inline"`
	DueTime       time.Time `json:"dueTime"`
	Overdue       bool      `json:"overdue"`
	OverdueDays   int       `json:"overdueDays"`
	SuggestedFine float64   `json:"suggestedFine"`
}

func NewLoanView(l Loan, now time.Time, loanPeriod time.Duration, finePerDay float64) LoanView {
	return LoanView{
		Loan:          l,
		DueTime:       l.DueTime(loanPeriod),
		Overdue:       l.Overdue(now, loanPeriod),
		OverdueDays:   l.OverdueDays(now, loanPeriod),
		SuggestedFine: l.SuggestedFine(now, loanPeriod, finePerDay),
	}
}

type User struct {
	ID       int    `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
	Role     string `json:"role" db:"role"`
	IsActive bool   `json:"isActive" db:"is_active"`
}

type AssessFineRequest struct {
	LoanID     int     `param:"loanId" validate:"required,gt=0"`
	FineAmount float64 `json:"fineAmount" validate:"required,gt=0"`
}

type ResolveLossRequest struct {
	BookID     int            `param:"bookId" validate:"required,gt=0"`
	Resolution LossResolution `json:"resolution" validate:"required"`
	Amount     float64        `json:"amount" validate:"gte=0"`
}

type BookRequest struct {
	Title  string `json:"title" validate:"required,max=255"`
	Author string `json:"author" validate:"required,max=255"`
}

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin reader"`
}

type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}
