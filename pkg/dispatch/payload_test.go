package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-b9/pkg/inference"
)

func TestCleanChatReply(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"B-9: Affirmative.", "Affirmative."},
		{"robot - Negative.", "Negative."},
		{"ROBOT:Danger.", "Danger."},
		{"  b-9 :  That does not compute.  ", "That does not compute."},
		{"Robotic systems nominal.", "Robotic systems nominal."},
		{"I am B-9: your robot.", "I am B-9: your robot."},
		{"B-9:", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanChatReply(tt.in), "CleanChatReply(%q)", tt.in)
	}
}

func TestSummarizeVision(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"two of three", "A man sits at a desk. He holds a cup. A lamp glows.",
			"My optical sensors detect the following. A man sits at a desk. He holds a cup."},
		{"exclamation", "A cat! It is orange! It sleeps.",
			"My optical sensors detect the following. A cat. It is orange."},
		{"single", "A dark room",
			"My optical sensors detect the following. A dark room."},
		{"only dots", "...",
			"My optical sensors detect the following. ..."},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeVision(tt.in))
		})
	}
}

func TestChatMessagesShortHistory(t *testing.T) {
	history := []inference.Message{
		inference.NewUserMessage("hello"),
		inference.NewAssistantMessage("Affirmative."),
	}
	msgs := chatMessages("persona", history, "status")
	require.Len(t, msgs, 4)
	assert.Equal(t, inference.RoleSystem, msgs[0].Role)
	assert.Equal(t, "status", msgs[3].Content)
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	want := map[int]bool{1: false, 2: false, 3: true, 4: false, 5: false, 6: true, 9: true}
	for n, restart := range want {
		assert.Equal(t, restart, p.Restarts(n), "Restarts(%d)", n)
	}

	bad := []Policy{
		{MaxAttempts: 0, FailureThreshold: 3},
		{MaxAttempts: 2, FailureThreshold: 0},
		{MaxAttempts: 2, FailureThreshold: 3, Backoff: -time.Second},
	}
	for _, p := range bad {
		assert.Error(t, p.Validate(), "%+v", p)
	}
}

func TestTicket(t *testing.T) {
	tk := newTicket("id", KindChat)
	_, ok := tk.Result()
	require.False(t, ok, "new ticket should be unresolved")
	_, ok = tk.Wait(context.Background(), 10*time.Millisecond)
	require.False(t, ok, "Wait should time out")

	tk.resolve("first")
	tk.resolve("second")
	got, ok := tk.Result()
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	r := ResolvedTicket(KindVision, "Warning. Optical sensors offline. No camera detected.")
	got, ok = r.Wait(context.Background(), time.Millisecond)
	assert.True(t, ok)
	assert.NotEmpty(t, got)
}
