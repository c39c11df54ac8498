// Package calendar exposes calendar events of one signed-in account through
// the declarative query builder and the msgraph SDK for event creation.
package calendar

import (
	"context"
	"fmt"

	models "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/viant/office/graph"
	"github.com/viant/office/query"
)

// Service wraps the calendar surface of one account.
type Service struct {
	executor *graph.Executor
}

func NewService(executor *graph.Executor) *Service {
	return &Service{executor: executor}
}

// Events returns a query over the default calendar's events.
func (s *Service) Events() *query.Query {
	return query.New(s.executor, graph.EntityEvents)
}

// CalendarEvents returns a query over events of a specific calendar.
func (s *Service) CalendarEvents(calendarID string) *query.Query {
	return query.New(s.executor, "calendars/"+calendarID+"/"+graph.EntityEvents)
}

// CreateEventInput describes a new event.
type CreateEventInput struct {
	Subject   string
	StartISO  string
	EndISO    string
	TimeZone  string
	Location  string
	Attendees []string
	BodyText  string
}

// Create posts a new event through the SDK client and returns the stored copy.
func (s *Service) Create(ctx context.Context, in *CreateEventInput) (*Event, error) {
	client, err := s.executor.Client(ctx)
	if err != nil {
		return nil, err
	}
	event := models.NewEvent()
	event.SetSubject(ptr(in.Subject))
	tz := in.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	start := models.NewDateTimeTimeZone()
	start.SetDateTime(ptr(in.StartISO))
	start.SetTimeZone(ptr(tz))
	end := models.NewDateTimeTimeZone()
	end.SetDateTime(ptr(in.EndISO))
	end.SetTimeZone(ptr(tz))
	event.SetStart(start)
	event.SetEnd(end)
	if in.Location != "" {
		location := models.NewLocation()
		location.SetDisplayName(ptr(in.Location))
		event.SetLocation(location)
	}
	if len(in.Attendees) > 0 {
		var attendees []models.Attendeeable
		for _, address := range in.Attendees {
			email := models.NewEmailAddress()
			email.SetAddress(ptr(address))
			attendee := models.NewAttendee()
			attendee.SetEmailAddress(email)
			attendees = append(attendees, attendee)
		}
		event.SetAttendees(attendees)
	}
	if in.BodyText != "" {
		body := models.NewItemBody()
		body.SetContentType(ptr(models.TEXT_BODYTYPE))
		body.SetContent(ptr(in.BodyText))
		event.SetBody(body)
	}
	created, err := client.Me().Events().Post(ctx, event, nil)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	ret := &Event{
		ID:        ptrVal(created.GetId()),
		Subject:   ptrVal(created.GetSubject()),
		StartISO:  dateTimeToISO(created.GetStart()),
		EndISO:    dateTimeToISO(created.GetEnd()),
		Location:  locationName(created.GetLocation()),
		Organizer: organizerAddress(created.GetOrganizer()),
	}
	return ret, nil
}

// Delete removes an event.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.executor.Call(ctx, "DELETE", graph.EntityEvents+"/"+id, nil, nil)
}

func ptr[T any](v T) *T { return &v }

func ptrVal[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func dateTimeToISO(dt models.DateTimeTimeZoneable) string {
	if dt == nil || dt.GetDateTime() == nil {
		return ""
	}
	return *dt.GetDateTime()
}

func locationName(location models.Locationable) string {
	if location == nil || location.GetDisplayName() == nil {
		return ""
	}
	return *location.GetDisplayName()
}

func organizerAddress(organizer models.Recipientable) string {
	if organizer == nil || organizer.GetEmailAddress() == nil || organizer.GetEmailAddress().GetAddress() == nil {
		return ""
	}
	return *organizer.GetEmailAddress().GetAddress()
}
