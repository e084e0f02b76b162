package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile() ProfileFragment {
	return ProfileFragment{FullName: "Alice Smith", Nickname: "alice"}
}

func TestClassifiedHandle_Classified(t *testing.T) {
	tests := []struct {
		kind HandleKind
		want bool
	}{
		{KindChannel, true},
		{KindChat, true},
		{KindPersonal, true},
		{KindUnknown, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifiedHandle{ID: "x", Kind: tt.kind}.Classified())
		})
	}
}

func TestNewMemberRecord_PartitionsByKind(t *testing.T) {
	rec, ok := NewMemberRecord(profile(), []ClassifiedHandle{
		{ID: "goweekly", Kind: KindChannel, URL: "https://t.me/goweekly", Title: "Go Weekly", Subscribers: 2500},
		{ID: "club_chat", Kind: KindChat, URL: "https://t.me/club_chat"},
		{ID: "alice_me", Kind: KindPersonal, URL: "https://t.me/alice_me"},
		{ID: "ghost", Kind: KindUnknown},
	})
	require.True(t, ok)

	assert.Equal(t, "Alice Smith", rec.FullName)
	assert.Equal(t, "alice", rec.Nickname)
	require.Len(t, rec.Telegram.Channels, 1)
	assert.Equal(t, Channel{ID: "goweekly", URL: "https://t.me/goweekly", Title: "Go Weekly", Subscribers: 2500}, rec.Telegram.Channels[0])
	assert.Equal(t, []string{"club_chat"}, rec.Telegram.Chats)
	assert.Equal(t, []string{"alice_me"}, rec.Telegram.Personal)
}

func TestNewMemberRecord_NothingClassified(t *testing.T) {
	rec, ok := NewMemberRecord(profile(), []ClassifiedHandle{{ID: "ghost", Kind: KindUnknown}})
	assert.False(t, ok)
	assert.Nil(t, rec)

	rec, ok = NewMemberRecord(profile(), nil)
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestNewMemberRecord_DropsRepeatedIDs(t *testing.T) {
	rec, ok := NewMemberRecord(profile(), []ClassifiedHandle{
		{ID: "club_chat", Kind: KindChat},
		{ID: "club_chat", Kind: KindChat},
		{ID: "club_chat", Kind: KindPersonal},
	})
	require.True(t, ok)

	assert.Equal(t, []string{"club_chat"}, rec.Telegram.Chats)
	assert.Empty(t, rec.Telegram.Personal)
}

func TestMemberRecord_JSONShape(t *testing.T) {
	rec, ok := NewMemberRecord(profile(), []ClassifiedHandle{{ID: "club_chat", Kind: KindChat}})
	require.True(t, ok)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"fullname": "Alice Smith",
		"nickname": "alice",
		"telegram": {"channels": [], "chats": ["club_chat"], "personal": []}
	}`, string(data))
}

func TestMemberRecord_Empty(t *testing.T) {
	assert.True(t, (&MemberRecord{}).Empty())
	assert.False(t, (&MemberRecord{Telegram: Telegram{Personal: []string{"a_b"}}}).Empty())
}

func TestProfileFragment_HasBio(t *testing.T) {
	p := profile()
	assert.False(t, p.HasBio())

	empty := ""
	p.Bio = &empty
	assert.True(t, p.HasBio())
}

func TestRunStats_Duration(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stats := &RunStats{StartedAt: start, FinishedAt: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, stats.Duration())

	running := &RunStats{StartedAt: time.Now().Add(-time.Second)}
	assert.GreaterOrEqual(t, running.Duration(), time.Second)
}
