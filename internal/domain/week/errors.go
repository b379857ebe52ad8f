package week

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is the class of precondition failures. Every error
	// below that describes bad caller input wraps it.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownActivity indicates the activity is not part of the week.
	ErrUnknownActivity = fmt.Errorf("%w: unknown activity", ErrInvalidArgument)
	// ErrDayOutOfRange indicates a day index outside [0,6].
	ErrDayOutOfRange = fmt.Errorf("%w: day index out of range", ErrInvalidArgument)
	// ErrEmptyActivityName indicates an activity definition without a name.
	ErrEmptyActivityName = fmt.Errorf("%w: activity name required", ErrInvalidArgument)
	// ErrDuplicateActivity indicates two definitions share a name or id.
	ErrDuplicateActivity = fmt.Errorf("%w: duplicate activity", ErrInvalidArgument)

	// ErrInvalidRecord indicates a week record that breaks its structural
	// invariants. Such a record is never persisted.
	ErrInvalidRecord = errors.New("invalid week record")
)
