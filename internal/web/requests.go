package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"gymcal/internal/agenda"
	"gymcal/internal/model"
)

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := model.ParseWeekday(fl.Field().String())
		return err == nil
	})
	// Report JSON names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type gymRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
}

func (r gymRequest) toModel(id string) model.Gym {
	return model.Gym{ID: id, Name: strings.TrimSpace(r.Name), Address: strings.TrimSpace(r.Address)}
}

type slotRequest struct {
	ID        string `json:"id"`
	GymID     string `json:"gymId" validate:"required"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

type scheduleRequest struct {
	ID        string        `json:"id"`
	ValidFrom string        `json:"validFrom" validate:"required,ymd"`
	ValidTo   string        `json:"validTo" validate:"required,ymd"`
	Monday    []slotRequest `json:"monday" validate:"dive"`
	Tuesday   []slotRequest `json:"tuesday" validate:"dive"`
	Wednesday []slotRequest `json:"wednesday" validate:"dive"`
	Thursday  []slotRequest `json:"thursday" validate:"dive"`
	Friday    []slotRequest `json:"friday" validate:"dive"`
	Saturday  []slotRequest `json:"saturday" validate:"dive"`
	Sunday    []slotRequest `json:"sunday" validate:"dive"`
}

func (r scheduleRequest) days() map[model.Weekday][]slotRequest {
	return map[model.Weekday][]slotRequest{
		model.Monday:    r.Monday,
		model.Tuesday:   r.Tuesday,
		model.Wednesday: r.Wednesday,
		model.Thursday:  r.Thursday,
		model.Friday:    r.Friday,
		model.Saturday:  r.Saturday,
		model.Sunday:    r.Sunday,
	}
}

// toModel converts a validated request; it checks what tags cannot
// express: slot and validity ordering.
func (r scheduleRequest) toModel(groupID string) (model.WeeklySchedule, error) {
	from, _ := model.ParseDate(r.ValidFrom)
	to, _ := model.ParseDate(r.ValidTo)
	if to.Before(from) {
		return model.WeeklySchedule{}, errors.New("validTo must not be before validFrom")
	}

	s := model.WeeklySchedule{ID: r.ID, GroupID: groupID, ValidFrom: from, ValidTo: to}
	days := r.days()
	for _, d := range model.Weekdays {
		slots := make([]model.TimeSlot, 0, len(days[d]))
		for _, sr := range days[d] {
			if err := checkTimeRange(sr.StartTime, sr.EndTime); err != nil {
				return model.WeeklySchedule{}, fmt.Errorf("%s: %w", d, err)
			}
			slots = append(slots, model.TimeSlot{ID: sr.ID, GymID: sr.GymID, StartTime: sr.StartTime, EndTime: sr.EndTime})
		}
		s.SetSlots(d, slots)
	}
	return s, nil
}

type groupRequest struct {
	Name      string           `json:"name" validate:"required,max=200"`
	SportType string           `json:"sportType" validate:"max=100"`
	Schedule  *scheduleRequest `json:"schedule" validate:"omitempty"`
}

func (r groupRequest) toModel(id string) (model.Group, error) {
	g := model.Group{ID: id, Name: strings.TrimSpace(r.Name), SportType: strings.TrimSpace(r.SportType)}
	if r.Schedule != nil {
		s, err := r.Schedule.toModel(id)
		if err != nil {
			return model.Group{}, err
		}
		g.Schedule = &s
	}
	return g, nil
}

type scheduleCheckRequest struct {
	// GroupID is the group owning the schedule, empty for a new group.
	GroupID  string          `json:"groupId"`
	Schedule scheduleRequest `json:"schedule"`
}

type matchRequest struct {
	GroupID     string `json:"groupId" validate:"required"`
	GymID       string `json:"gymId" validate:"required"`
	Opponent    string `json:"opponent" validate:"max=200"`
	StartTime   string `json:"startTime" validate:"required,hhmm"`
	EndTime     string `json:"endTime" validate:"required,hhmm"`
	ExternalUID string `json:"externalUid"`

	Type string `json:"type" validate:"required,oneof=one-off recurring"`

	Date string `json:"date" validate:"omitempty,ymd"`

	DayOfWeek          string `json:"dayOfWeek" validate:"omitempty,weekday"`
	ValidFrom          string `json:"validFrom" validate:"omitempty,ymd"`
	ValidTo            string `json:"validTo" validate:"omitempty,ymd"`
	RecurrenceInterval int    `json:"recurrenceInterval" validate:"omitempty,min=1"`
}

// toModel builds the recurrence matching Type; fields of the other
// variant are ignored.
func (r matchRequest) toModel(id string) (model.Match, error) {
	if err := checkTimeRange(r.StartTime, r.EndTime); err != nil {
		return model.Match{}, err
	}
	m := model.Match{
		ID:          id,
		GroupID:     r.GroupID,
		GymID:       r.GymID,
		Opponent:    strings.TrimSpace(r.Opponent),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		ExternalUID: r.ExternalUID,
	}

	switch model.MatchType(r.Type) {
	case model.MatchOneOff:
		if r.Date == "" {
			return model.Match{}, errors.New("date is required for a one-off match")
		}
		d, _ := model.ParseDate(r.Date)
		m.Recurrence = model.OneOff{Date: d}
	case model.MatchRecurring:
		if r.DayOfWeek == "" || r.ValidFrom == "" || r.ValidTo == "" || r.RecurrenceInterval == 0 {
			return model.Match{}, errors.New("dayOfWeek, validFrom, validTo and recurrenceInterval are required for a recurring match")
		}
		day, _ := model.ParseWeekday(r.DayOfWeek)
		from, _ := model.ParseDate(r.ValidFrom)
		to, _ := model.ParseDate(r.ValidTo)
		if to.Before(from) {
			return model.Match{}, errors.New("validTo must not be before validFrom")
		}
		m.Recurrence = model.Recurring{DayOfWeek: day, ValidFrom: from, ValidTo: to, Interval: r.RecurrenceInterval}
	}
	return m, nil
}

func checkTimeRange(start, end string) error {
	if agenda.Minutes(start) >= agenda.Minutes(end) {
		return fmt.Errorf("startTime %s must be before endTime %s", start, end)
	}
	return nil
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// On failure it writes a 400 and returns false.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
