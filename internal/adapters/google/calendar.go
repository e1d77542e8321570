package google

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/dkeye/meetsync/internal/domain"
)

const (
	DefaultTitle    = "Yuzu Meeting"
	DefaultDuration = time.Hour
	primaryCalendar = "primary"
)

// MeetingProvisioner creates calendar events with a Google Meet conference.
type MeetingProvisioner struct {
	conf       *oauth2.Config
	calendarID string
	opts       []option.ClientOption
	now        func() time.Time
}

// NewMeetingProvisioner builds the provisioner; opts are passed to the
// calendar client after the credential's token source.
func NewMeetingProvisioner(cfg Config, opts ...option.ClientOption) *MeetingProvisioner {
	id := cfg.CalendarID
	if id == "" {
		id = primaryCalendar
	}
	return &MeetingProvisioner{conf: oauthConfig(cfg), calendarID: id, opts: opts, now: time.Now}
}

func (p *MeetingProvisioner) CreateMeeting(ctx context.Context, cred domain.Credential, req domain.MeetingRequest) (domain.Meeting, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(p.conf.TokenSource(ctx, toToken(cred)))}, p.opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("%w: calendar client: %w", domain.ErrProvisioningFailed, err)
	}

	created, err := svc.Events.Insert(p.calendarID, p.event(req)).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return domain.Meeting{}, classify(err, domain.ErrProvisioningFailed)
	}
	if created.HangoutLink == "" || created.ConferenceData == nil || created.ConferenceData.ConferenceId == "" {
		return domain.Meeting{}, fmt.Errorf("%w: event %s has no conference", domain.ErrProvisioningFailed, created.Id)
	}

	m := domain.Meeting{
		ID:           domain.MeetingID(created.ConferenceData.ConferenceId),
		URL:          created.HangoutLink,
		Title:        created.Summary,
		StartTime:    eventTime(created.Start),
		EndTime:      eventTime(created.End),
		Participants: []domain.Participant{},
	}
	log.Info().Str("module", "adapters.google").Str("meeting", string(m.ID)).Str("event", created.Id).Msg("meeting created")
	return m, nil
}

func (p *MeetingProvisioner) event(req domain.MeetingRequest) *calendar.Event {
	title := req.Title
	if title == "" {
		title = DefaultTitle
	}
	start := req.StartTime
	if start.IsZero() {
		start = p.now()
	}
	end := req.EndTime
	if end.IsZero() || !end.After(start) {
		end = start.Add(DefaultDuration)
	}

	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
	for i, email := range req.Attendees {
		a := &calendar.EventAttendee{Email: email}
		if i == 0 {
			a.Organizer = true
			a.ResponseStatus = "accepted"
		}
		attendees = append(attendees, a)
	}

	return &calendar.Event{
		Summary:     title,
		Description: "Meeting created via meetsync",
		Start:       &calendar.EventDateTime{DateTime: start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Attendees:   attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             "meetsync-" + uuid.NewString(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       []*calendar.EventReminder{{Method: "popup", Minutes: 5}},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func eventTime(dt *calendar.EventDateTime) time.Time {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}
	}
	return t
}
