package model

import (
	"fmt"
	"strings"
	"time"
)

// UnknownName is substituted when a referenced gym or group no longer exists.
const UnknownName = "Unknown"

// Weekday is the lowercase English day name used in records and JSON.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists the days Monday first, the order used for schedules.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf maps a time.Weekday (Sunday = 0) to a Weekday.
func WeekdayOf(wd time.Weekday) Weekday {
	switch wd {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// ParseWeekday accepts any case and surrounding spaces.
func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

func (d Weekday) Valid() bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// Label returns the capitalized name, e.g. "Wednesday".
func (d Weekday) Label() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

// TimeWeekday converts back to time.Weekday.
func (d Weekday) TimeWeekday() time.Weekday {
	switch d {
	case Monday:
		return time.Monday
	case Tuesday:
		return time.Tuesday
	case Wednesday:
		return time.Wednesday
	case Thursday:
		return time.Thursday
	case Friday:
		return time.Friday
	case Saturday:
		return time.Saturday
	default:
		return time.Sunday
	}
}

type Gym struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// TimeSlot binds a gym to a time range. Times are 24-hour "HH:MM";
// StartTime < EndTime is assumed, not checked.
type TimeSlot struct {
	ID        string `json:"id"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	GymID     string `json:"gymId"`
}

// WeeklySchedule is a group's recurring training template, valid on the
// inclusive range [ValidFrom, ValidTo].
type WeeklySchedule struct {
	ID        string `json:"id"`
	GroupID   string `json:"groupId"`
	ValidFrom Date   `json:"validFrom"`
	ValidTo   Date   `json:"validTo"`

	Monday    []TimeSlot `json:"monday"`
	Tuesday   []TimeSlot `json:"tuesday"`
	Wednesday []TimeSlot `json:"wednesday"`
	Thursday  []TimeSlot `json:"thursday"`
	Friday    []TimeSlot `json:"friday"`
	Saturday  []TimeSlot `json:"saturday"`
	Sunday    []TimeSlot `json:"sunday"`
}

// SlotsFor returns the slot list of the given day.
func (s WeeklySchedule) SlotsFor(d Weekday) []TimeSlot {
	switch d {
	case Monday:
		return s.Monday
	case Tuesday:
		return s.Tuesday
	case Wednesday:
		return s.Wednesday
	case Thursday:
		return s.Thursday
	case Friday:
		return s.Friday
	case Saturday:
		return s.Saturday
	case Sunday:
		return s.Sunday
	}
	return nil
}

// SetSlots replaces the slot list of the given day.
func (s *WeeklySchedule) SetSlots(d Weekday, slots []TimeSlot) {
	switch d {
	case Monday:
		s.Monday = slots
	case Tuesday:
		s.Tuesday = slots
	case Wednesday:
		s.Wednesday = slots
	case Thursday:
		s.Thursday = slots
	case Friday:
		s.Friday = slots
	case Saturday:
		s.Saturday = slots
	case Sunday:
		s.Sunday = slots
	}
}

// SlotCount returns the number of slots across the whole week.
func (s WeeklySchedule) SlotCount() int {
	n := 0
	for _, d := range Weekdays {
		n += len(s.SlotsFor(d))
	}
	return n
}

type Group struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SportType string          `json:"sportType,omitempty"`
	Schedule  *WeeklySchedule `json:"schedule,omitempty"`
}

// Occurrence is a single dated training session or match, derived on
// demand and never persisted.
type Occurrence struct {
	ID       string `json:"id"`
	SourceID string `json:"sourceId"`         // schedule or match id
	SlotID   string `json:"slotId,omitempty"` // training only

	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	GymID     string `json:"gymId"`
	GymName   string `json:"gymName"`

	Date      Date   `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`

	IsMatch  bool   `json:"isMatch"`
	Opponent string `json:"opponent,omitempty"`
}

// Conflict describes an existing slot of another group that a candidate
// slot would double-book.
type Conflict struct {
	GroupName string `json:"groupName"`
	GymName   string `json:"gymName"`
	TimeRange string `json:"timeRange"`
	DayOfWeek string `json:"dayOfWeek"`
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s @ %s (%s)", c.DayOfWeek, c.GroupName, c.GymName, c.TimeRange)
}
