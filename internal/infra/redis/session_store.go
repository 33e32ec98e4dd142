package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"edu-quiz-engine/internal/app"
	"edu-quiz-engine/internal/domain"
	"edu-quiz-engine/internal/logging"
)

// SessionStore is a Redis-backed implementation of app.SessionRepository.
// Notes:
//   - Live sessions stay in a local map so subscriptions keep working in-process.
//   - Every state change is written to Redis as a JSON snapshot with a TTL, so a
//     restarted instance (or another one behind the same Redis) can resume it.
//   - Subscribers are not shared across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	log      *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      logging.OrNop(log),
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(sessionID string) *app.Session {
	if session, ok := s.Get(sessionID); ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session
	}
	session := app.NewSession(sessionID, s.persist)
	s.sessions[sessionID] = session
	s.persist(session.Snapshot())
	return session
}

// Get returns the live session or rehydrates it from its persisted snapshot.
func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return session, true
	}

	snapshot, found := s.load(context.Background(), sessionID)
	if !found {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session, true
	}
	session = app.RestoreSession(snapshot, s.persist)
	s.sessions[sessionID] = session
	return session, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		s.log.Warn("session snapshot not deleted", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// persist is best-effort: a Redis outage only costs resumability.
func (s *SessionStore) persist(snapshot domain.SessionSnapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.log.Warn("session snapshot not encoded", zap.String("session_id", snapshot.SessionID), zap.Error(err))
		return
	}
	if err := s.client.Set(context.Background(), s.key(snapshot.SessionID), payload, s.ttl).Err(); err != nil {
		s.log.Warn("session snapshot not stored", zap.String("session_id", snapshot.SessionID), zap.Error(err))
	}
}

func (s *SessionStore) load(ctx context.Context, sessionID string) (domain.SessionSnapshot, bool) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn("session snapshot not loaded", zap.String("session_id", sessionID), zap.Error(err))
		}
		return domain.SessionSnapshot{}, false
	}
	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.log.Warn("session snapshot corrupt", zap.String("session_id", sessionID), zap.Error(err))
		return domain.SessionSnapshot{}, false
	}
	return snapshot, true
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
