package context

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/davidahmann/spendgate/pkg/types"
)

// ErrInvalidRequest marks a malformed transaction context. It is a caller
// error and is never reported as a policy outcome.
var ErrInvalidRequest = errors.New("invalid request")

var moduleName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Validate checks tx at the boundary and returns every problem joined.
func Validate(tx types.TransactionContext) error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !moduleName.MatchString(tx.Module) {
		fail("module", "must be a lowercase identifier, got %q", tx.Module)
	}
	if !tx.PaymentMethod.Valid() {
		fail("payment_method", "unknown payment method %q", tx.PaymentMethod)
	}
	switch {
	case tx.ProgramStatus == "" && tx.PaymentMethod.Corporate():
		fail("program_status", "is required for %s", types.PaymentCorporatePay)
	case tx.ProgramStatus != "" && !tx.ProgramStatus.Valid():
		fail("program_status", "unknown program status %q", tx.ProgramStatus)
	}

	if tx.NowMs <= 0 {
		fail("now_ms", "must be a positive epoch millisecond timestamp")
	}
	if tx.GraceEndAtMs < 0 {
		fail("grace_end_at_ms", "must not be negative")
	}
	if tx.DelinquentSinceMs < 0 {
		fail("delinquent_since_ms", "must not be negative")
	}
	if tx.AttachmentsCount < 0 {
		fail("attachments_count", "must not be negative")
	}

	if len(tx.Items) == 0 {
		fail("items", "at least one line item is required")
	}
	seen := make(map[string]bool, len(tx.Items))
	var total int64
	for i, item := range tx.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ID == "" {
			fail(field+".id", "is required")
		} else if seen[item.ID] {
			fail(field+".id", "duplicate item id %q", item.ID)
		}
		seen[item.ID] = true
		if item.Category == "" {
			fail(field+".category", "is required")
		}
		if item.VendorID == "" {
			fail(field+".vendor_id", "is required")
		}
		if item.UnitAmount < 0 {
			fail(field+".unit_amount", "must not be negative")
		}
		if item.Qty < 1 {
			fail(field+".qty", "must be at least 1")
		}
		if item.UnitAmount > 0 && item.Qty > 0 {
			if item.UnitAmount > math.MaxInt64/item.Qty {
				fail(field, "line amount overflows")
				continue
			}
			amount := item.Amount()
			if total > math.MaxInt64-amount {
				fail(field, "basket total overflows")
				continue
			}
			total += amount
		}
	}

	return errors.Join(errs...)
}
