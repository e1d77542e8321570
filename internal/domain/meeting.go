package domain

import "time"

type MeetingID string

// Participant identifies a device that joined the meeting. Identity is the
// DeviceID assigned at attach time.
type Participant struct {
	Kind     DeviceKind `json:"deviceKind"`
	DeviceID DeviceID   `json:"deviceId"`
}

// Meeting is the canonical snapshot of the active call of a session.
type Meeting struct {
	ID           MeetingID     `json:"meetingId"`
	URL          string        `json:"meetingUrl,omitempty"`
	Title        string        `json:"title,omitempty"`
	StartTime    time.Time     `json:"startTime,omitzero"`
	EndTime      time.Time     `json:"endTime,omitzero"`
	Participants []Participant `json:"participants"`
}

func (m *Meeting) Clone() *Meeting {
	if m == nil {
		return nil
	}
	out := *m
	out.Participants = append(make([]Participant, 0, len(m.Participants)), m.Participants...)
	return &out
}

func (m *Meeting) HasParticipant(id DeviceID) bool {
	for _, p := range m.Participants {
		if p.DeviceID == id {
			return true
		}
	}
	return false
}

// MeetingUpdate is a partial meeting; zero fields mean "leave as is".
type MeetingUpdate struct {
	ID           MeetingID     `json:"meetingId"`
	URL          string        `json:"meetingUrl,omitempty"`
	Title        string        `json:"title,omitempty"`
	StartTime    time.Time     `json:"startTime,omitzero"`
	EndTime      time.Time     `json:"endTime,omitzero"`
	Participants []Participant `json:"participants,omitempty"`
}

// Merge applies u on top of cur. When cur holds the same meeting id the fields
// are merged and new participants appended; otherwise u becomes the meeting.
// Participants are deduplicated by device id in both cases. metadataChanged
// reports whether anything other than the participant list differs.
func (u MeetingUpdate) Merge(cur *Meeting) (next *Meeting, metadataChanged bool) {
	if cur == nil || cur.ID != u.ID {
		next = &Meeting{
			ID:           u.ID,
			URL:          u.URL,
			Title:        u.Title,
			StartTime:    u.StartTime,
			EndTime:      u.EndTime,
			Participants: make([]Participant, 0, len(u.Participants)),
		}
		next.appendParticipants(u.Participants)
		return next, true
	}

	next = cur.Clone()
	if u.URL != "" && u.URL != next.URL {
		next.URL = u.URL
		metadataChanged = true
	}
	if u.Title != "" && u.Title != next.Title {
		next.Title = u.Title
		metadataChanged = true
	}
	if !u.StartTime.IsZero() && !u.StartTime.Equal(next.StartTime) {
		next.StartTime = u.StartTime
		metadataChanged = true
	}
	if !u.EndTime.IsZero() && !u.EndTime.Equal(next.EndTime) {
		next.EndTime = u.EndTime
		metadataChanged = true
	}
	next.appendParticipants(u.Participants)
	return next, metadataChanged
}

func (m *Meeting) appendParticipants(ps []Participant) {
	for _, p := range ps {
		if p.DeviceID == "" || m.HasParticipant(p.DeviceID) {
			continue
		}
		m.Participants = append(m.Participants, p)
	}
}

// MeetingRequest is what the provisioning service needs to create a meeting.
type MeetingRequest struct {
	Title     string    `json:"title,omitempty"`
	StartTime time.Time `json:"startTime,omitzero"`
	EndTime   time.Time `json:"endTime,omitzero"`
	Attendees []string  `json:"attendees,omitempty"`
}
