package week

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityDefinition is a recurring activity that seeds every new week.
// Weeks hold copies, so editing a definition never reaches existing weeks.
type ActivityDefinition struct {
	ID       string `json:"id" yaml:"id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	Time     string `json:"time" yaml:"time"`
	Category string `json:"category" yaml:"category"`
}

// DailyStatus holds one completion mark per day, Monday first.
type DailyStatus [DaysPerWeek]bool

// Count returns the number of completed days.
func (d DailyStatus) Count() int {
	n := 0
	for _, done := range d {
		if done {
			n++
		}
	}
	return n
}

// UnmarshalJSON rejects sequences that are not exactly seven entries long.
func (d *DailyStatus) UnmarshalJSON(data []byte) error {
	var raw []bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: daily status: %v", ErrInvalidRecord, err)
	}
	if len(raw) != DaysPerWeek {
		return fmt.Errorf("%w: daily status has %d entries", ErrInvalidRecord, len(raw))
	}
	copy(d[:], raw)
	return nil
}

// DailyProgress is the per-activity record of which days were completed.
type DailyProgress struct {
	Activity       ActivityDefinition `json:"activity"`
	DailyStatus    DailyStatus        `json:"daily_status"`
	CompletionRate float64            `json:"completion_rate"`
}

// Record is one week of completion marks. Rates are derived from the marks
// and recomputed on every mutation and every decode.
type Record struct {
	WeekStartDate         time.Time       `json:"week_start_date"`
	WeekEndDate           time.Time       `json:"week_end_date"`
	Activities            []DailyProgress `json:"activities"`
	OverallCompletionRate float64         `json:"overall_completion_rate"`
	Notes                 string          `json:"notes,omitempty"`
}

// New seeds a week enclosing ref with a by-value copy of each definition.
func New(ref time.Time, loc *time.Location, defs []ActivityDefinition) Record {
	start, end := Bounds(ref, loc)
	rec := Record{
		WeekStartDate: start,
		WeekEndDate:   end,
		Activities:    make([]DailyProgress, 0, len(defs)),
	}
	for _, def := range defs {
		rec.Activities = append(rec.Activities, DailyProgress{Activity: def})
	}
	rec.Recompute()
	return rec
}

// Expired reports whether now is strictly after the end of the week.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.WeekEndDate)
}

// Contains reports whether t falls inside the week.
func (r Record) Contains(t time.Time) bool {
	return !t.Before(r.WeekStartDate) && !t.After(r.WeekEndDate)
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	out := r
	if r.Activities != nil {
		out.Activities = make([]DailyProgress, len(r.Activities))
		copy(out.Activities, r.Activities)
	}
	return out
}

// Recompute derives every completion rate from the daily marks.
func (r *Record) Recompute() {
	total := 0
	for i := range r.Activities {
		n := r.Activities[i].DailyStatus.Count()
		total += n
		r.Activities[i].CompletionRate = Rate(n, DaysPerWeek)
	}
	r.OverallCompletionRate = Rate(total, len(r.Activities)*DaysPerWeek)
}

// Rate returns marks/slots as a percentage rounded to two decimals, or 0 when
// there are no slots.
func Rate(marks, slots int) float64 {
	if slots <= 0 {
		return 0
	}
	return math.Round(float64(marks)/float64(slots)*100*100) / 100
}

// Find returns the index of the activity whose id, or failing that whose
// exact name, equals ref.
func (r Record) Find(ref string) (int, error) {
	for i, p := range r.Activities {
		if p.Activity.ID != "" && p.Activity.ID == ref {
			return i, nil
		}
	}
	for i, p := range r.Activities {
		if p.Activity.Name == ref {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownActivity, ref)
}

// Toggle returns a copy of r with a single cell flipped and rates recomputed.
// r itself is left untouched.
func (r Record) Toggle(activityRef string, day int) (Record, error) {
	if err := CheckDay(day); err != nil {
		return Record{}, err
	}
	i, err := r.Find(activityRef)
	if err != nil {
		return Record{}, err
	}
	out := r.Clone()
	out.Activities[i].DailyStatus[day] = !out.Activities[i].DailyStatus[day]
	out.Recompute()
	return out, nil
}

// WithNotes returns a copy of r carrying the given notes.
func (r Record) WithNotes(notes string) Record {
	out := r.Clone()
	out.Notes = notes
	return out
}

// Validate checks the structural invariants of a record.
func (r Record) Validate() error {
	if r.WeekStartDate.IsZero() || r.WeekEndDate.IsZero() {
		return fmt.Errorf("%w: missing period", ErrInvalidRecord)
	}
	// A DST shift inside the week moves the span by up to an hour.
	span := r.WeekEndDate.Sub(r.WeekStartDate)
	nominal := DaysPerWeek*24*time.Hour - time.Millisecond
	if span < nominal-time.Hour || span > nominal+time.Hour {
		return fmt.Errorf("%w: period spans %s", ErrInvalidRecord, span)
	}
	seen := make(map[string]struct{}, len(r.Activities))
	for _, p := range r.Activities {
		if strings.TrimSpace(p.Activity.Name) == "" {
			return fmt.Errorf("%w: activity without name", ErrInvalidRecord)
		}
		if p.Activity.ID == "" {
			continue
		}
		if _, dup := seen[p.Activity.ID]; dup {
			return fmt.Errorf("%w: duplicate activity id %s", ErrInvalidRecord, p.Activity.ID)
		}
		seen[p.Activity.ID] = struct{}{}
	}
	return nil
}

// Encode validates r and serializes it for storage.
func Encode(r Record) ([]byte, error) {
	r = r.Clone()
	r.Recompute()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Activities == nil {
		r.Activities = []DailyProgress{}
	}
	return json.Marshal(r)
}

// Decode parses a stored record. Stored rates are discarded and recomputed
// from the marks.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decoding week: %w", err)
	}
	r.Recompute()
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// NormalizeDefinitions trims fields, assigns ids to new definitions, and
// rejects empty or duplicate names. The input slice is not modified.
func NormalizeDefinitions(defs []ActivityDefinition) ([]ActivityDefinition, error) {
	out := make([]ActivityDefinition, 0, len(defs))
	names := make(map[string]struct{}, len(defs))
	ids := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		def.Name = strings.TrimSpace(def.Name)
		def.Time = strings.TrimSpace(def.Time)
		def.Category = strings.TrimSpace(def.Category)
		def.ID = strings.TrimSpace(def.ID)
		if def.Name == "" {
			return nil, ErrEmptyActivityName
		}
		if _, dup := names[def.Name]; dup {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateActivity, def.Name)
		}
		names[def.Name] = struct{}{}
		if def.ID == "" {
			def.ID = uuid.NewString()
		}
		if _, dup := ids[def.ID]; dup {
			return nil, fmt.Errorf("%w: id %q", ErrDuplicateActivity, def.ID)
		}
		ids[def.ID] = struct{}{}
		out = append(out, def)
	}
	return out, nil
}
