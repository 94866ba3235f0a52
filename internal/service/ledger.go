package service

import (
	"context"
	"strings"

	"creditfeed/internal/cache"
	"creditfeed/internal/middleware"
	"creditfeed/internal/models"
	"creditfeed/internal/observability"
	"creditfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AwardInput describes one ledger entry to apply.
type AwardInput struct {
	UserID      uint
	Amount      int
	Type        models.TransactionType
	Description string
}

// AwardResult is the applied entry and the balance after it.
type AwardResult struct {
	Transaction models.CreditTransaction `json:"transaction"`
	Balance     int                      `json:"credits"`
}

// ReconcileReport compares a user's stored balance with the ledger.
type ReconcileReport struct {
	UserID    uint  `json:"user_id"`
	Balance   int   `json:"credits"`
	LedgerSum int64 `json:"ledger_sum"`
	Expected  int64 `json:"expected"`
	Drift     int64 `json:"drift"`
}

// CreditHistory is one page of a user's ledger.
type CreditHistory struct {
	Transactions []models.CreditTransaction `json:"transactions"`
	Page         int                        `json:"page"`
	PageSize     int                        `json:"page_size"`
	Total        int64                      `json:"total"`
}

// CreditLedger is the only path that changes a user's credit balance.
// Every award updates the balance and appends a transaction atomically.
type CreditLedger struct {
	db      *gorm.DB
	users   repository.UserRepository
	credits repository.CreditRepository
	inTx    bool
}

func NewCreditLedger(db *gorm.DB, users repository.UserRepository, credits repository.CreditRepository) *CreditLedger {
	return &CreditLedger{db: db, users: users, credits: credits}
}

// WithTx returns a ledger whose awards join tx instead of opening their own.
func (l *CreditLedger) WithTx(tx *gorm.DB) *CreditLedger {
	return &CreditLedger{
		db:      tx,
		users:   l.users.WithTx(tx),
		credits: l.credits.WithTx(tx),
		inTx:    true,
	}
}

// Award applies in.Amount to the user's balance and records it in the ledger.
func (l *CreditLedger) Award(ctx context.Context, in AwardInput) (*AwardResult, error) {
	if !in.Type.Valid() {
		return nil, models.NewValidationError("unknown transaction type: " + string(in.Type))
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, models.NewValidationError("Transaction description is required")
	}

	ctx, span := observability.StartSpan(ctx, "ledger", "award",
		attribute.Int("user.id", int(in.UserID)),
		attribute.Int("credits.amount", in.Amount),
		attribute.String("credits.type", string(in.Type)),
	)

	var result *AwardResult
	var err error
	if l.inTx {
		result, err = l.apply(ctx, l.users, l.credits, in)
	} else {
		err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			result, txErr = l.apply(ctx, l.users.WithTx(tx), l.credits.WithTx(tx), in)
			return txErr
		})
		if err == nil {
			cache.InvalidateUser(ctx, in.UserID)
		}
	}
	observability.EndSpan(span, err)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	observability.LedgerWrites.WithLabelValues(string(in.Type), outcome).Inc()
	if err != nil {
		return nil, storageError(err)
	}

	observability.CreditsAwarded.WithLabelValues(string(in.Type)).Add(float64(in.Amount))
	middleware.Logger.InfoContext(ctx, "Credits awarded",
		"target_user_id", in.UserID,
		"amount", in.Amount,
		"type", in.Type,
		"balance", result.Balance,
	)
	return result, nil
}

func (l *CreditLedger) apply(ctx context.Context, users repository.UserRepository, credits repository.CreditRepository, in AwardInput) (*AwardResult, error) {
	balance, err := users.AddCredits(ctx, in.UserID, in.Amount)
	if err != nil {
		return nil, err
	}
	entry := models.CreditTransaction{
		UserID:      in.UserID,
		Amount:      in.Amount,
		Type:        in.Type,
		Description: in.Description,
	}
	if err := credits.Append(ctx, &entry); err != nil {
		return nil, err
	}
	return &AwardResult{Transaction: entry, Balance: balance}, nil
}

// Balance returns the stored credit balance.
func (l *CreditLedger) Balance(ctx context.Context, userID uint) (int, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// History returns a page of the user's transactions, newest first.
func (l *CreditLedger) History(ctx context.Context, userID uint, page, pageSize int) (*CreditHistory, error) {
	if _, err := l.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)
	entries, total, err := l.credits.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &CreditHistory{Transactions: entries, Page: page, PageSize: pageSize, Total: total}, nil
}

// Reconcile reports the drift between the stored balance and the starting
// balance plus the ledger sum. It never repairs.
func (l *CreditLedger) Reconcile(ctx context.Context, userID uint) (*ReconcileReport, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, models.NewNotFoundError("User", userID)
		}
		return nil, storageError(err)
	}
	sum, err := l.credits.SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	expected := int64(models.DefaultCredits) + sum
	report := &ReconcileReport{
		UserID:    userID,
		Balance:   user.Credits,
		LedgerSum: sum,
		Expected:  expected,
		Drift:     int64(user.Credits) - expected,
	}
	if report.Drift != 0 {
		middleware.Logger.WarnContext(ctx, "Credit balance drift detected",
			"target_user_id", userID,
			"balance", user.Credits,
			"expected", expected,
		)
	}
	return report, nil
}
