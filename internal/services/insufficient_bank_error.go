package services

import (
	"fmt"

	contextutils "prepapp/internal/utils"
)

// InsufficientBankError is returned when an exam-mode batch cannot be served
// because the bank holds too few eligible questions for the requested filters.
type InsufficientBankError struct {
	Available int
	Requested int
}

func (e *InsufficientBankError) Error() string {
	return fmt.Sprintf("not enough questions in the bank for this exam (available=%d requested=%d)", e.Available, e.Requested)
}

// Unwrap allows errors.Is(..., contextutils.ErrInsufficientQuestionBank) to work.
func (e *InsufficientBankError) Unwrap() error {
	return contextutils.ErrInsufficientQuestionBank
}
