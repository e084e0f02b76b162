package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/handle-crawler/internal/types"
)

func TestRunStatusConstants(t *testing.T) {
	assert.Equal(t, "running", RunStatusRunning)
	assert.Equal(t, "done", RunStatusDone)
	assert.Equal(t, "failed", RunStatusFailed)
	assert.Equal(t, "interrupted", RunStatusInterrupted)
}

func TestRunType(t *testing.T) {
	run := Run{
		DirectoryURL: "https://club.example",
		Status:       RunStatusRunning,
	}

	assert.Equal(t, "https://club.example", run.DirectoryURL)
	assert.Nil(t, run.Stats)
	assert.Nil(t, run.CompletedAt)
}

func TestEncodeDecodeMember(t *testing.T) {
	rec := &types.MemberRecord{
		FullName: "Alice Smith",
		Nickname: "alice",
		Telegram: types.Telegram{
			Channels: []types.Channel{{ID: "goweekly", URL: "https://t.me/goweekly", Subscribers: 2500}},
			Chats:    []string{"club_chat"},
			Personal: []string{},
		},
	}

	data, err := encodeTelegram(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"channels": [{"id": "goweekly", "url": "https://t.me/goweekly", "title": "", "description": "", "subscribers": 2500}],
		"chats": ["club_chat"],
		"personal": []
	}`, string(data))

	decoded, err := decodeMember("alice", "Alice Smith", data)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestEncodeTelegram_Nil(t *testing.T) {
	_, err := encodeTelegram(nil)
	assert.Error(t, err)
}

func TestDecodeMember_FillsMissingCollections(t *testing.T) {
	rec, err := decodeMember("bob", "Bob", []byte(`{"chats": ["c1"]}`))
	require.NoError(t, err)
	assert.NotNil(t, rec.Telegram.Channels)
	assert.NotNil(t, rec.Telegram.Personal)
	assert.Equal(t, []string{"c1"}, rec.Telegram.Chats)
}

func TestDecodeMember_InvalidJSON(t *testing.T) {
	_, err := decodeMember("bob", "Bob", []byte(`{`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob")
}
