package chat

import (
	"time"

	"pocketchat/internal/storage"
)

// typingKey identifies the unique (user, chat) presence pair.
type typingKey struct {
	userID string
	chatID string
}

// SetTyping inserts or removes the presence entry for (userID, chatID).
// It is idempotent: repeating isTyping=true keeps a single entry, and
// isTyping=false for an absent entry is a no-op.
func (s *Store) SetTyping(chatID, userID, username string, isTyping bool) {
	s.mu.Lock()

	changed := false
	if isTyping {
		if s.typingIndexLocked(userID, chatID) < 0 {
			s.typing = append(s.typing, storage.TypingPresence{
				UserID:   userID,
				Username: username,
				ChatID:   chatID,
			})
			changed = true
		}
	} else {
		changed = s.removeTypingLocked(userID, chatID)
	}

	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Typing is the debounced keystroke entry point: it marks the user as
// composing and (re)schedules the idle timer for the (user, chat)
// pair, so exactly one stop transition fires per idle period rather
// than one per keystroke.
func (s *Store) Typing(chatID, userID, username string) {
	s.SetTyping(chatID, userID, username, true)

	s.mu.Lock()
	key := typingKey{userID: userID, chatID: chatID}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}
	s.timers[key] = time.AfterFunc(s.idle, func() {
		s.SetTyping(chatID, userID, username, false)
	})
	s.mu.Unlock()
}

// TypingIn returns the presence entries for the chat
func (s *Store) TypingIn(chatID string) []storage.TypingPresence {
	s.mu.Lock()
	defer s.mu.Unlock()

	var present []storage.TypingPresence
	for _, p := range s.typing {
		if p.ChatID == chatID {
			present = append(present, p)
		}
	}
	return present
}

func (s *Store) typingIndexLocked(userID, chatID string) int {
	for i := range s.typing {
		if s.typing[i].UserID == userID && s.typing[i].ChatID == chatID {
			return i
		}
	}
	return -1
}

// clearChatTypingLocked drops every presence entry for the chat and
// cancels their pending timers. Used by the chat deletion cascade.
func (s *Store) clearChatTypingLocked(chatID string) {
	for key, timer := range s.timers {
		if key.chatID == chatID {
			timer.Stop()
			delete(s.timers, key)
		}
	}

	kept := s.typing[:0]
	for _, p := range s.typing {
		if p.ChatID != chatID {
			kept = append(kept, p)
		}
	}
	s.typing = kept
}

// removeTypingLocked drops the presence entry and cancels its pending
// idle timer. It reports whether an entry was removed.
func (s *Store) removeTypingLocked(userID, chatID string) bool {
	key := typingKey{userID: userID, chatID: chatID}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}

	idx := s.typingIndexLocked(userID, chatID)
	if idx < 0 {
		return false
	}
	s.typing = append(s.typing[:idx], s.typing[idx+1:]...)
	return true
}
