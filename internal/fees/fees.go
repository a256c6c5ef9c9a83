// Package fees computes acquirer fees per payment. It is pure; the active
// fee schedule is passed in by the caller.
package fees

import (
	"fmt"
	"math"

	"lojapos/backend/internal/domain"
)

// ForPayment returns the fee in cents for one payment leg.
//
// Cash and transfer never carry a fee. Pix uses the schedule's pix rate,
// debit the debit rate. Credit at 1 installment uses the credit rate;
// 2..12 installments look up the installment table, and a missing entry
// means the acquirer charges nothing for that plan. A nil schedule yields
// zero fees across the board so checkout keeps working before the acquirer
// rates are configured.
func ForPayment(amountCents int64, methodType string, installments int, schedule *domain.CardFeeSchedule) (int64, error) {
	if amountCents < 0 {
		return 0, fmt.Errorf("fee: negative amount %d", amountCents)
	}
	if installments < 1 {
		installments = 1
	}
	if installments > 1 && methodType != domain.PaymentTypeCredit {
		return 0, fmt.Errorf("fee: %s payments do not support installments", methodType)
	}
	if installments > domain.MaxInstallments {
		return 0, fmt.Errorf("fee: %d installments exceeds the maximum of %d", installments, domain.MaxInstallments)
	}

	switch methodType {
	case domain.PaymentTypeCash, domain.PaymentTypeTransfer:
		return 0, nil
	case domain.PaymentTypePix, domain.PaymentTypeCredit, domain.PaymentTypeDebit:
	default:
		return 0, fmt.Errorf("fee: unknown payment type %q", methodType)
	}

	if schedule == nil {
		return 0, nil
	}

	var pct float64
	switch methodType {
	case domain.PaymentTypePix:
		pct = schedule.PixFee
	case domain.PaymentTypeDebit:
		pct = schedule.DebitFee
	case domain.PaymentTypeCredit:
		if installments == 1 {
			pct = schedule.CreditFee
		} else {
			pct = schedule.InstallmentFees[installments]
		}
	}
	return Percent(amountCents, pct), nil
}

// Percent applies a percentage to an amount in cents, rounding half away
// from zero.
func Percent(amountCents int64, pct float64) int64 {
	if pct == 0 {
		return 0
	}
	return int64(math.Round(float64(amountCents) * pct / 100))
}
