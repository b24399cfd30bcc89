package calc

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports one invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks trade inputs against today's civil date.
func Validate(scripCode string, in Inputs, today time.Time) error {
	if strings.TrimSpace(scripCode) == "" {
		return invalid("scripCode", "required")
	}
	if in.BuyPrice <= 0 {
		return invalid("buyPrice", "must be greater than 0")
	}
	if in.Qty <= 0 {
		return invalid("qty", "must be greater than 0")
	}
	if in.BuyDate.IsZero() {
		return invalid("buyDate", "required")
	}
	if CivilDate(in.BuyDate).After(CivilDate(today)) {
		return invalid("buyDate", "cannot be in the future")
	}
	if in.AdditionalMargin < 0 {
		return invalid("additionalMargin", "cannot be negative")
	}
	if in.CMP < 0 {
		return invalid("cmp", "cannot be negative")
	}
	return validateClosure(in, today)
}

func validateClosure(in Inputs, today time.Time) error {
	switch {
	case in.SellPrice == nil && in.SellDate == nil:
		return nil
	case in.SellPrice == nil:
		return invalid("sellPrice", "required when sellDate is set")
	case in.SellDate == nil:
		return invalid("sellDate", "required when sellPrice is set")
	}
	if *in.SellPrice <= 0 {
		return invalid("sellPrice", "must be greater than 0")
	}
	if DaysBetween(in.BuyDate, *in.SellDate) < 0 {
		return invalid("sellDate", "cannot be before buyDate")
	}
	if CivilDate(*in.SellDate).After(CivilDate(today)) {
		return invalid("sellDate", "cannot be in the future")
	}
	return nil
}

// ValidateRates rejects negative charges and rates of 100% or more.
func ValidateRates(interestPerDay, brokerage, pledge, unpledge float64) error {
	if interestPerDay < 0 || interestPerDay >= 1 {
		return invalid("interestRatePerDay", "must be in [0, 1)")
	}
	if brokerage < 0 || brokerage >= 1 {
		return invalid("brokerageRate", "must be in [0, 1)")
	}
	if pledge < 0 {
		return invalid("pledgeCharges", "cannot be negative")
	}
	if unpledge < 0 {
		return invalid("unpledgeCharges", "cannot be negative")
	}
	return nil
}
