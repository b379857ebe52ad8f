package activity

import (
	"fmt"

	"github.com/rpggio/weekly/internal/domain/week"
)

// ErrInvalidInput indicates a malformed activity entry or query.
var ErrInvalidInput = fmt.Errorf("%w: invalid activity input", week.ErrInvalidArgument)
