// Package domain holds the academic record shapes carried as opaque
// transaction payload by the chain. Nothing in this package is aware of
// blocks, signatures, or the network — it only needs a stable, field-order
// preserving JSON encoding (see internal/chain for why that matters).
package domain

import (
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day component, encoded as
// "YYYY-MM-DD". It mirrors the role of chrono::NaiveDate in the original
// implementation this system was distilled from.
type Date struct {
	time.Time
}

// NewDate builds a Date from year/month/day, matching the Rust
// original's NaiveDate::from_ymd_opt call sites.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("domain: invalid date %q", b)
	}
	t, err := time.Parse(`"`+dateLayout+`"`, string(b))
	if err != nil {
		return fmt.Errorf("domain: parse date %q: %w", b, err)
	}
	d.Time = t
	return nil
}

// Grade is a single assessment score within a Discipline.
type Grade struct {
	ID    uint32  `json:"id_grade"`
	Value float32 `json:"value"`
	Kind  string  `json:"kind"`
	Date  Date    `json:"date"`
}

// NewGrade constructs a Grade.
func NewGrade(id uint32, value float32, kind string, date Date) Grade {
	return Grade{ID: id, Value: value, Kind: kind, Date: date}
}

// Discipline is a course taken within a Term, carrying its own grades.
type Discipline struct {
	ID         uint32  `json:"id_discipline"`
	Name       string  `json:"name"`
	Code       string  `json:"code"`
	Grades     []Grade `json:"grades"`
	Average    float32 `json:"average"`
	Attendance float32 `json:"attendance"`
}

// NewDiscipline constructs a Discipline with an empty grade list.
func NewDiscipline(id uint32, name, code string) Discipline {
	return Discipline{ID: id, Name: name, Code: code, Grades: []Grade{}}
}

// AddGrade appends a grade and recomputes the simple numeric average.
// Attendance is left to the caller — it is not derivable from grades.
func (d *Discipline) AddGrade(g Grade) {
	d.Grades = append(d.Grades, g)
	var sum float32
	for _, gr := range d.Grades {
		sum += gr.Value
	}
	d.Average = sum / float32(len(d.Grades))
}

// Term is an academic period (a school year/semester pairing) holding an
// ordered list of disciplines.
type Term struct {
	ID          uint32       `json:"id_term"`
	Year        uint32       `json:"year"`
	Semester    uint8        `json:"semester"`
	Disciplines []Discipline `json:"disciplines"`
}

// NewTerm constructs a Term with an empty discipline list.
func NewTerm(id uint32, year uint32, semester uint8) Term {
	return Term{ID: id, Year: year, Semester: semester, Disciplines: []Discipline{}}
}

// AddDiscipline appends a discipline to the term.
func (t *Term) AddDiscipline(d Discipline) {
	t.Disciplines = append(t.Disciplines, d)
}

// Student is the subject of a transaction: an enrollee with zero or more
// terms already recorded against it.
type Student struct {
	ID          uint32 `json:"id_student"`
	Name        string `json:"name"`
	DateOfBirth Date   `json:"date_of_birth"`
	Terms       []Term `json:"terms"`
}

// NewStudent constructs a Student with an empty term list.
func NewStudent(id uint32, name string, dob Date) Student {
	return Student{ID: id, Name: name, DateOfBirth: dob, Terms: []Term{}}
}
