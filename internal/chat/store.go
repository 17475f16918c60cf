package chat

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"pocketchat/internal/storage"
)

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrAccountNotExist = errors.New("account does not exist")
	ErrChatNotExist    = errors.New("chat does not exist")
	ErrChatLimit       = errors.New("free tier chat limit reached")
)

// FreeChatLimit is the number of chats a non-premium account may
// participate in. Enforced at creation time only.
const FreeChatLimit = 2

const defaultIdleWindow = 2 * time.Second

// Store owns chats, message logs, the active-chat selection and typing
// presence. Callers are single-threaded by construction, but typing
// timers fire on their own goroutines, so state is guarded by a mutex.
type Store struct {
	logger *zap.SugaredLogger
	repo   *storage.Store
	idle   time.Duration

	mu         sync.Mutex
	chats      []storage.Chat
	messages   map[string][]storage.Message
	activeChat string
	typing     []storage.TypingPresence
	timers     map[typingKey]*time.Timer
	subs       []func()
}

// New returns a conversation Store bound to the provided repository.
// It starts empty; call LoadChats to hydrate it for an account.
func New(logger *zap.SugaredLogger, repo *storage.Store, opts ...Option) *Store {
	s := &Store{
		logger:   logger,
		repo:     repo,
		idle:     defaultIdleWindow,
		messages: make(map[string][]storage.Message),
		timers:   make(map[typingKey]*time.Timer),
	}

	for _, opt := range opts {
		opt.apply(s)
	}

	return s
}

// Subscribe registers fn to be called after every mutation. The UI
// layer uses this as its re-render hook. Typing expirations invoke fn
// from a timer goroutine.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// notify must be called without holding mu.
func (s *Store) notify() {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// CreateChat creates a chat owned by ownerID with an empty message
// log. A non-premium owner already participating in FreeChatLimit
// chats is rejected with ErrChatLimit; that is a policy decision, not
// a fault, and the caller decides the user-facing messaging.
func (s *Store) CreateChat(name, ownerID string) (string, error) {
	s.logger.Debugf("Creating chat (%s) for account %s", name, ownerID)

	if name == "" || ownerID == "" {
		return "", ErrMissingFields
	}

	owner, ok := s.accountByID(ownerID)
	if !ok {
		return "", ErrAccountNotExist
	}

	s.mu.Lock()

	if !owner.IsPremium {
		count := 0
		for _, chat := range s.chats {
			if chat.HasParticipant(ownerID) {
				count++
			}
		}
		if count >= FreeChatLimit {
			s.mu.Unlock()
			return "", ErrChatLimit
		}
	}

	now := time.Now()
	chat := storage.Chat{
		ID:           storage.NewID(),
		Name:         name,
		Participants: []string{ownerID},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.chats = append(s.chats, chat)
	s.messages[chat.ID] = []storage.Message{}
	s.persistChatsLocked()
	s.persistMessagesLocked()
	s.mu.Unlock()
	s.notify()

	s.logger.Debugf("Created chat %s", chat.ID)
	return chat.ID, nil
}

// SendMessage appends an immutable message to the chat's log, updates
// the chat's last-message snapshot and clears the sender's typing
// presence. Unknown chat ids are rejected rather than silently
// creating a log.
func (s *Store) SendMessage(chatID, content, senderID string) (string, error) {
	s.logger.Debugf("Sending message from account %s in chat %s", senderID, chatID)

	if chatID == "" || content == "" || senderID == "" {
		return "", ErrMissingFields
	}

	s.mu.Lock()

	idx := s.chatIndexLocked(chatID)
	if idx < 0 {
		s.mu.Unlock()
		return "", ErrChatNotExist
	}

	message := storage.Message{
		ID:        storage.NewID(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now(),
	}

	s.messages[chatID] = append(s.messages[chatID], message)

	snapshot := message
	s.chats[idx].LastMessage = &snapshot
	s.chats[idx].UpdatedAt = message.Timestamp

	s.removeTypingLocked(senderID, chatID)

	s.persistChatsLocked()
	s.persistMessagesLocked()
	s.mu.Unlock()
	s.notify()

	return message.ID, nil
}

// SetActiveChat changes the in-memory selection. The empty id means no
// selection. Deliberately not persisted: the selection is not restored
// across restarts.
func (s *Store) SetActiveChat(chatID string) {
	s.mu.Lock()
	s.activeChat = chatID
	s.mu.Unlock()
	s.notify()
}

// ActiveChat returns the selected chat id, or "" when none is selected
func (s *Store) ActiveChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChat
}

// LoadChats rebuilds in-memory state from the repository, keeping only
// chats the account participates in and the message logs of those
// chats. It never writes to the repository; read faults fall back to
// empty state with a warning.
func (s *Store) LoadChats(accountID string) {
	s.logger.Debugf("Loading chats for account %s", accountID)

	stored, err := s.repo.LoadChats()
	if err != nil {
		s.logger.Warnf("chat collection unreadable, using empty collection: %v", err)
		stored = nil
	}

	logs, err := s.repo.LoadMessages()
	if err != nil {
		s.logger.Warnf("message logs unreadable, using empty logs: %v", err)
		logs = nil
	}

	var chats []storage.Chat
	messages := make(map[string][]storage.Message)
	for _, chat := range stored {
		if !chat.HasParticipant(accountID) {
			continue
		}
		chats = append(chats, chat)
		if log, ok := logs[chat.ID]; ok {
			messages[chat.ID] = log
		}
	}

	s.mu.Lock()
	s.chats = chats
	s.messages = messages
	s.mu.Unlock()
	s.notify()

	s.logger.Debugf("Loaded %d chats", len(chats))
}

// DeleteChat removes the chat, cascades deletion of its message log
// and typing entries, and clears the active selection if it pointed at
// the deleted chat.
func (s *Store) DeleteChat(chatID string) error {
	s.logger.Debugf("Deleting chat %s", chatID)

	s.mu.Lock()

	idx := s.chatIndexLocked(chatID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrChatNotExist
	}

	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	delete(s.messages, chatID)

	if s.activeChat == chatID {
		s.activeChat = ""
	}

	s.clearChatTypingLocked(chatID)

	s.persistChatsLocked()
	s.persistMessagesLocked()
	s.mu.Unlock()
	s.notify()

	return nil
}

// Chats returns a copy of the loaded chats
func (s *Store) Chats() []storage.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := make([]storage.Chat, len(s.chats))
	copy(chats, s.chats)
	return chats
}

// Messages returns a copy of the chat's message log
func (s *Store) Messages(chatID string) []storage.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.messages[chatID]
	if !ok {
		return nil
	}
	messages := make([]storage.Message, len(log))
	copy(messages, log)
	return messages
}

func (s *Store) chatIndexLocked(chatID string) int {
	for i := range s.chats {
		if s.chats[i].ID == chatID {
			return i
		}
	}
	return -1
}

// accountByID resolves an account in the registry shared with the
// session store
func (s *Store) accountByID(accountID string) (storage.Account, bool) {
	registry, err := s.repo.LoadAccounts()
	if err != nil {
		s.logger.Warnf("account registry unreadable, using empty registry: %v", err)
		return storage.Account{}, false
	}

	for _, account := range registry {
		if account.ID == accountID {
			return account, true
		}
	}
	return storage.Account{}, false
}

func (s *Store) persistChatsLocked() {
	if err := s.repo.SaveChats(s.chats); err != nil {
		s.logger.Warnf("persisting chat collection: %v", err)
	}
}

func (s *Store) persistMessagesLocked() {
	if err := s.repo.SaveMessages(s.messages); err != nil {
		s.logger.Warnf("persisting message logs: %v", err)
	}
}
