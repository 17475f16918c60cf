package storage

import (
	"database/sql"
	"encoding/json"
	"errors"

	_ "github.com/mattn/go-sqlite3"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// Fixed keys of the four logical records in the key-value store.
const (
	keyAccounts = "accounts-registry"
	keySession  = "current-session-marker"
	keyChats    = "chats-collection"
	keyMessages = "messages-by-chat"
)

// ErrMalformedRecord is returned when a persisted record exists but is
// not valid JSON for its collection. Callers are expected to treat it
// as recoverable and fall back to an empty default.
var ErrMalformedRecord = errors.New("malformed persisted record")

// Store is the local key-value repository. Each logical record is a
// JSON blob under a fixed key; every save fully overwrites its record.
type Store struct {
	logger *zap.SugaredLogger
	db     *sql.DB
}

// New opens (creating if needed) the key-value database at cfg.Path
// and returns a Store instance
func New(logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, err
	}

	// single writer by construction; also keeps :memory: databases on
	// one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`create table if not exists kv (key text primary key, value text not null)`); err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     db,
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Errorf("closing kv database: %v", err)
	}
}

// get returns the raw value stored under key. A missing key is not an
// error: it reports ok=false with a nil error.
func (s *Store) get(key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRow("select value from kv where key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *Store) set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	sql := "insert into kv (key, value) values (?, ?) on conflict (key) do update set value = excluded.value"
	_, err = s.db.Exec(sql, key, string(raw))
	return err
}

func (s *Store) del(key string) error {
	_, err := s.db.Exec("delete from kv where key = ?", key)
	return err
}

// load decodes the record under key into v. Absent key leaves v
// untouched and returns nil. A present but undecodable record yields
// ErrMalformedRecord.
func (s *Store) load(key string, v interface{}) error {
	raw, ok, err := s.get(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := fastjson.ValidateBytes(raw); err != nil {
		s.logger.Warnf("record %q is not valid JSON: %v", key, err)
		return ErrMalformedRecord
	}

	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warnf("record %q does not decode: %v", key, err)
		return ErrMalformedRecord
	}

	return nil
}

// LoadAccounts reads the account registry. Absent record means an
// empty registry.
func (s *Store) LoadAccounts() ([]Account, error) {
	var accounts []Account
	if err := s.load(keyAccounts, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SaveAccounts overwrites the account registry record
func (s *Store) SaveAccounts(accounts []Account) error {
	return s.set(keyAccounts, accounts)
}

// LoadSession reads the current-session marker. It returns nil without
// error when no marker is stored.
func (s *Store) LoadSession() (*Account, error) {
	var account *Account
	if err := s.load(keySession, &account); err != nil {
		return nil, err
	}
	return account, nil
}

// SaveSession overwrites the current-session marker. The account is
// stored without its secret.
func (s *Store) SaveSession(account Account) error {
	return s.set(keySession, account.WithoutSecret())
}

// ClearSession removes the current-session marker
func (s *Store) ClearSession() error {
	return s.del(keySession)
}

// LoadChats reads the chat collection. Absent record means no chats.
func (s *Store) LoadChats() ([]Chat, error) {
	var chats []Chat
	if err := s.load(keyChats, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// SaveChats overwrites the chat collection record
func (s *Store) SaveChats(chats []Chat) error {
	return s.set(keyChats, chats)
}

// LoadMessages reads all message logs keyed by chat id
func (s *Store) LoadMessages() (map[string][]Message, error) {
	logs := make(map[string][]Message)
	if err := s.load(keyMessages, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// SaveMessages overwrites the messages record
func (s *Store) SaveMessages(logs map[string][]Message) error {
	return s.set(keyMessages, logs)
}
