package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MatchType is the JSON discriminator of a Match's recurrence.
type MatchType string

const (
	MatchOneOff    MatchType = "one-off"
	MatchRecurring MatchType = "recurring"
)

// Recurrence is either OneOff or Recurring.
type Recurrence interface {
	Type() MatchType
	isRecurrence()
}

// OneOff is a match played on a single date.
type OneOff struct {
	Date Date
}

// Recurring repeats on DayOfWeek every Interval weeks, counted from
// ValidFrom, within [ValidFrom, ValidTo].
type Recurring struct {
	DayOfWeek Weekday
	ValidFrom Date
	ValidTo   Date
	Interval  int
}

func (OneOff) Type() MatchType    { return MatchOneOff }
func (OneOff) isRecurrence()      {}
func (Recurring) Type() MatchType { return MatchRecurring }
func (Recurring) isRecurrence()   {}

// Match is an independent fixture of a group at a gym.
type Match struct {
	ID        string
	GroupID   string
	GymID     string
	Opponent  string
	StartTime string
	EndTime   string

	// ExternalUID is the iCalendar UID of an imported match.
	ExternalUID string

	Recurrence Recurrence
}

// Type returns the discriminator of the match's recurrence, "" if unset.
func (m Match) Type() MatchType {
	if m.Recurrence == nil {
		return ""
	}
	return m.Recurrence.Type()
}

// matchJSON is the flat wire shape, one struct with a type tag.
type matchJSON struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"groupId"`
	GymID       string    `json:"gymId"`
	Opponent    string    `json:"opponent,omitempty"`
	Type        MatchType `json:"type"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	ExternalUID string    `json:"externalUid,omitempty"`

	Date *Date `json:"date,omitempty"`

	DayOfWeek          Weekday `json:"dayOfWeek,omitempty"`
	ValidFrom          *Date   `json:"validFrom,omitempty"`
	ValidTo            *Date   `json:"validTo,omitempty"`
	RecurrenceInterval int     `json:"recurrenceInterval,omitempty"`
}

var ErrMissingRecurrence = errors.New("match has no recurrence")

func (m Match) MarshalJSON() ([]byte, error) {
	out := matchJSON{
		ID:          m.ID,
		GroupID:     m.GroupID,
		GymID:       m.GymID,
		Opponent:    m.Opponent,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		ExternalUID: m.ExternalUID,
	}
	switch r := m.Recurrence.(type) {
	case OneOff:
		out.Type = MatchOneOff
		d := r.Date
		out.Date = &d
	case Recurring:
		out.Type = MatchRecurring
		from, to := r.ValidFrom, r.ValidTo
		out.DayOfWeek = r.DayOfWeek
		out.ValidFrom = &from
		out.ValidTo = &to
		out.RecurrenceInterval = r.Interval
	default:
		return nil, ErrMissingRecurrence
	}
	return json.Marshal(out)
}

func (m *Match) UnmarshalJSON(b []byte) error {
	var in matchJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := Match{
		ID:          in.ID,
		GroupID:     in.GroupID,
		GymID:       in.GymID,
		Opponent:    in.Opponent,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		ExternalUID: in.ExternalUID,
	}
	switch in.Type {
	case MatchOneOff:
		if in.Date == nil {
			return errors.New("one-off match requires date")
		}
		out.Recurrence = OneOff{Date: *in.Date}
	case MatchRecurring:
		if in.ValidFrom == nil || in.ValidTo == nil || in.DayOfWeek == "" {
			return errors.New("recurring match requires dayOfWeek, validFrom and validTo")
		}
		out.Recurrence = Recurring{
			DayOfWeek: in.DayOfWeek,
			ValidFrom: *in.ValidFrom,
			ValidTo:   *in.ValidTo,
			Interval:  in.RecurrenceInterval,
		}
	default:
		return fmt.Errorf("unknown match type %q", in.Type)
	}
	*m = out
	return nil
}
