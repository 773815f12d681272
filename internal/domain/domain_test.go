package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2000, time.January, 1)
	encoded, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `"2000-01-01"` {
		t.Fatalf("expected \"2000-01-01\", got %s", encoded)
	}

	var decoded Date
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Time.Equal(d.Time) {
		t.Fatalf("expected %v, got %v", d.Time, decoded.Time)
	}
}

func TestDisciplineAddGradeRecomputesAverage(t *testing.T) {
	d := NewDiscipline(1, "Algorithms", "CS101")
	d.AddGrade(NewGrade(1, 8, "exam", NewDate(2024, time.March, 1)))
	d.AddGrade(NewGrade(2, 6, "exam", NewDate(2024, time.June, 1)))

	if d.Average != 7 {
		t.Fatalf("expected average 7, got %v", d.Average)
	}
	if len(d.Grades) != 2 {
		t.Fatalf("expected 2 grades, got %d", len(d.Grades))
	}
}

func TestTermAddDiscipline(t *testing.T) {
	term := NewTerm(1, 2024, 1)
	term.AddDiscipline(NewDiscipline(1, "Algorithms", "CS101"))
	if len(term.Disciplines) != 1 {
		t.Fatalf("expected 1 discipline, got %d", len(term.Disciplines))
	}
}

func TestNewStudentStartsWithNoTerms(t *testing.T) {
	s := NewStudent(7, "Ana", NewDate(2000, time.January, 1))
	if len(s.Terms) != 0 {
		t.Fatalf("expected no terms, got %d", len(s.Terms))
	}
}
