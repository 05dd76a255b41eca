package teams

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeviceSummary_Overflow(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := DeviceSearchResult{
		DeviceID:      "5A00000001",
		ChatsSearched: 10,
		TotalChats:    12,
		TotalMessages: 4,
		Results: []ChatHit{
			{ChatTopic: "a", Messages: []MessageHit{{Content: "latest note", From: "Ann", CreatedDateTime: at}}},
			{ChatTopic: "b"},
			{ChatTopic: "c"},
			{ChatTopic: "d"},
		},
	}

	got := deviceSummary(r)
	assert.Equal(t, "Found 4 message(s) mentioning device 5A00000001 across 4 chat(s).\n\n"+
		"Found in: a, b, c and 1 other chat(s)\n\n"+
		"Most recent: \"latest note...\" - Ann\n\n"+
		"Searched 10 of 12 accessible chats.", got)
}

func TestDeviceSummary_Empty(t *testing.T) {
	got := deviceSummary(DeviceSearchResult{DeviceID: "1234567890", ChatsSearched: 2, TotalChats: 2})
	assert.Equal(t, "No Teams messages found for device 1234567890. Searched 2 of 2 accessible chats.", got)
}

func TestAggregate_CapsMessagesPerChat(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var msgs []message
	for i := 0; i < 7; i++ {
		m := message{ID: string(rune('a' + i)), CreatedDateTime: base.Add(time.Duration(i) * time.Hour)}
		m.Body.Content = "vid 1234567890"
		msgs = append(msgs, m)
	}

	r := aggregate("1234567890", []loadedChat{{chat: chat{ID: "c", Topic: "t"}, messages: msgs}}, 1, 1)
	assert.Equal(t, 7, r.TotalMessages)
	assert.Len(t, r.Results[0].Messages, maxHitsPerChat)
	assert.Equal(t, "g", r.Results[0].Messages[0].ID)
	assert.Equal(t, "Unknown User", r.Results[0].Messages[0].From)
}

func TestChatDisplayName(t *testing.T) {
	assert.Equal(t, "Topic", chat{Topic: "Topic"}.displayName())
	assert.Equal(t, "Direct Chat", chat{}.displayName())
	assert.Equal(t, "Chat with Unknown", chat{Members: []member{{}}}.displayName())
}
