package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditEvent describes one finished lifecycle or admin operation.
type AuditEvent struct {
	ID     uuid.UUID `json:"id"`
	Time   time.Time `json:"time"`
	Op     string    `json:"op"`
	Actor  int       `json:"actor,omitempty"`
	BookID int       `json:"bookId,omitempty"`
	LoanID int       `json:"loanId,omitempty"`
	UserID int       `json:"userId,omitempty"`
	// NewBookID is the copy shelved in place of a lost book.
	NewBookID int     `json:"newBookId,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	OK        bool    `json:"ok"`
	Reason    string  `json:"reason,omitempty"`
}

// String renders the event as the single line the audit log expects.
func (e AuditEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Time.Format(time.RFC3339), e.Op)
	if e.Actor != 0 {
		fmt.Fprintf(&b, " actor=%d", e.Actor)
	}
	if e.BookID != 0 {
		fmt.Fprintf(&b, " book=%d", e.BookID)
	}
	if e.LoanID != 0 {
		fmt.Fprintf(&b, " loan=%d", e.LoanID)
	}
	if e.UserID != 0 {
		fmt.Fprintf(&b, " user=%d", e.UserID)
	}
	if e.NewBookID != 0 {
		fmt.Fprintf(&b, " new_book=%d", e.NewBookID)
	}
	if e.Amount != 0 {
		fmt.Fprintf(&b, " amount=%.2f", e.Amount)
	}
	if e.OK {
		b.WriteString(" ok")
	} else {
		fmt.Fprintf(&b, " failed: %s", e.Reason)
	}
	return b.String()
}
