package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid_input")
	ErrUnknownCategory = errors.New("unknown_category")

	ErrNegativeQuantity = fmt.Errorf("%w: negative quantity", ErrInvalidInput)
	ErrIndexRegression  = fmt.Errorf("%w: new index below old index", ErrInvalidInput)
	ErrNegativeArea     = fmt.Errorf("%w: negative area", ErrInvalidInput)
)
