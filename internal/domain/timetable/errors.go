package timetable

import (
	"errors"
	"fmt"

	"github.com/rpggio/weekly/internal/domain/week"
)

var (
	// ErrTimetableNotFound indicates the timetable doesn't exist for the user.
	ErrTimetableNotFound = errors.New("timetable not found")
	// ErrNoActiveTimetable indicates the user has no active timetable.
	ErrNoActiveTimetable = fmt.Errorf("%w: no active timetable", week.ErrInvalidArgument)
	// ErrNameTaken indicates another timetable of the user has the same name.
	ErrNameTaken = errors.New("timetable name already in use")
	// ErrConflict indicates a compare-and-swap save kept losing to other writers.
	ErrConflict = errors.New("timetable modified concurrently")
	// ErrInvalidInput indicates invalid timetable input.
	ErrInvalidInput = fmt.Errorf("%w: invalid timetable input", week.ErrInvalidArgument)
)
