package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// TransactionType classifies why credits moved.
type TransactionType string

const (
	TxDailyLogin         TransactionType = "daily_login"
	TxProfileCompletion  TransactionType = "profile_completion"
	TxContentInteraction TransactionType = "content_interaction"
	TxAdminAdjustment    TransactionType = "admin_adjustment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TxDailyLogin, TxProfileCompletion, TxContentInteraction, TxAdminAdjustment:
		return true
	}
	return false
}

// ErrLedgerImmutable is returned when code tries to rewrite a ledger row.
var ErrLedgerImmutable = errors.New("credit transactions are append-only")

// MaxDescriptionLength matches the size of the description column.
const MaxDescriptionLength = 255

// CreditTransaction is one immutable ledger entry.
type CreditTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Amount      int             `gorm:"not null" json:"amount"`
	Type        TransactionType `gorm:"type:varchar(32);not null;index" json:"type"`
	Description string          `gorm:"size:255;not null" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// BeforeUpdate rejects updates so the ledger stays an audit trail.
func (CreditTransaction) BeforeUpdate(_ *gorm.DB) error {
	return ErrLedgerImmutable
}

// BeforeDelete rejects deletes for the same reason.
func (CreditTransaction) BeforeDelete(_ *gorm.DB) error {
	return ErrLedgerImmutable
}
