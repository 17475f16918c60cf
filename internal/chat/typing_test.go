package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetTypingIdempotent(t *testing.T) {
	s, _ := bootstrap(t)

	s.SetTyping("c1", "u1", "alice", true)
	s.SetTyping("c1", "u1", "alice", true)
	require.Len(t, s.TypingIn("c1"), 1)

	// distinct (user, chat) pairs get their own entries
	s.SetTyping("c1", "u2", "bob", true)
	s.SetTyping("c2", "u1", "alice", true)
	require.Len(t, s.TypingIn("c1"), 2)
	require.Len(t, s.TypingIn("c2"), 1)

	s.SetTyping("c1", "u1", "alice", false)
	require.Len(t, s.TypingIn("c1"), 1)
	require.Equal(t, "bob", s.TypingIn("c1")[0].Username)

	// removing an absent entry is a no-op
	s.SetTyping("c1", "u1", "alice", false)
	require.Len(t, s.TypingIn("c1"), 1)
}

func TestTypingDebounce(t *testing.T) {
	s, _ := bootstrap(t, WithIdleWindow(100*time.Millisecond))

	s.Typing("c1", "u1", "alice")
	time.Sleep(50 * time.Millisecond)

	// a second keystroke reschedules the idle timer
	s.Typing("c1", "u1", "alice")
	time.Sleep(30 * time.Millisecond)
	require.Len(t, s.TypingIn("c1"), 1)

	time.Sleep(170 * time.Millisecond)
	require.Empty(t, s.TypingIn("c1"))
}

func TestTypingStopsOnce(t *testing.T) {
	s, _ := bootstrap(t, WithIdleWindow(50*time.Millisecond))

	var mu sync.Mutex
	stops := 0
	s.Subscribe(func() {
		if len(s.TypingIn("c1")) == 0 {
			mu.Lock()
			stops++
			mu.Unlock()
		}
	})

	for i := 0; i < 5; i++ {
		s.Typing("c1", "u1", "alice")
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	require.Empty(t, s.TypingIn("c1"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, stops, "one stop transition per idle period, not one per keystroke")
}

func TestSendMessageClearsTyping(t *testing.T) {
	s, repo := bootstrap(t, WithIdleWindow(time.Minute))
	alice := seedAccount(t, repo, "alice", false)

	chatID, err := s.CreateChat("Work", alice)
	require.NoError(t, err)

	s.Typing(chatID, alice, "alice")
	require.Len(t, s.TypingIn(chatID), 1)

	_, err = s.SendMessage(chatID, "hello", alice)
	require.NoError(t, err)
	require.Empty(t, s.TypingIn(chatID))
}

func TestDeleteChatClearsTyping(t *testing.T) {
	s, repo := bootstrap(t, WithIdleWindow(time.Minute))
	alice := seedAccount(t, repo, "alice", false)

	chatID, err := s.CreateChat("Work", alice)
	require.NoError(t, err)

	s.Typing(chatID, alice, "alice")
	s.Typing(chatID, "u2", "bob")
	require.Len(t, s.TypingIn(chatID), 2)

	require.NoError(t, s.DeleteChat(chatID))
	require.Empty(t, s.TypingIn(chatID))
}
