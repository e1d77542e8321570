package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingUpdate_MergeNewMeeting(t *testing.T) {
	u := MeetingUpdate{ID: "m1", Title: "standup"}

	next, changed := u.Merge(nil)
	require.NotNil(t, next)
	assert.True(t, changed)
	assert.Equal(t, MeetingID("m1"), next.ID)
	assert.NotNil(t, next.Participants, "participants default to an empty sequence")
	assert.Empty(t, next.Participants)
}

func TestMeetingUpdate_MergeSameIDKeepsParticipants(t *testing.T) {
	cur := &Meeting{
		ID:           "m1",
		Title:        "standup",
		Participants: []Participant{{Kind: KindGlasses, DeviceID: "a"}},
	}
	u := MeetingUpdate{ID: "m1", Participants: []Participant{{Kind: KindWrist, DeviceID: "b"}}}

	next, changed := u.Merge(cur)
	assert.False(t, changed, "only participants changed")
	assert.Equal(t, "standup", next.Title)
	assert.Equal(t, []Participant{
		{Kind: KindGlasses, DeviceID: "a"},
		{Kind: KindWrist, DeviceID: "b"},
	}, next.Participants)
	assert.Len(t, cur.Participants, 1, "current snapshot is not mutated")
}

func TestMeetingUpdate_MergeDeduplicatesByDeviceID(t *testing.T) {
	cur := &Meeting{ID: "m1", Participants: []Participant{{Kind: KindGlasses, DeviceID: "a"}}}
	u := MeetingUpdate{ID: "m1", Participants: []Participant{
		{Kind: KindGlasses, DeviceID: "a"},
		{Kind: KindRing, DeviceID: "c"},
		{Kind: KindRing, DeviceID: "c"},
	}}

	next, _ := u.Merge(cur)
	assert.Len(t, next.Participants, 2)
}

func TestMeetingUpdate_MergeMetadata(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cur := &Meeting{ID: "m1", Title: "old"}
	u := MeetingUpdate{ID: "m1", Title: "new", URL: "https://meet.google.com/abc", StartTime: start}

	next, changed := u.Merge(cur)
	assert.True(t, changed)
	assert.Equal(t, "new", next.Title)
	assert.Equal(t, "https://meet.google.com/abc", next.URL)
	assert.True(t, next.StartTime.Equal(start))
}

func TestMeetingUpdate_MergeDifferentIDReplaces(t *testing.T) {
	cur := &Meeting{ID: "m1", Title: "old", Participants: []Participant{{DeviceID: "a"}}}
	u := MeetingUpdate{ID: "m2"}

	next, changed := u.Merge(cur)
	assert.True(t, changed)
	assert.Equal(t, MeetingID("m2"), next.ID)
	assert.Empty(t, next.Title)
	assert.Empty(t, next.Participants)
}

func TestParseDeviceKind(t *testing.T) {
	tests := []struct {
		in   string
		want DeviceKind
		err  bool
	}{
		{"glasses", KindGlasses, false},
		{"Wrist", KindWrist, false},
		{"watch", KindWrist, false},
		{" ring ", KindRing, false},
		{"phone", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeviceKind(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownDeviceKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
