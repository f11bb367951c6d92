package rag

import (
	"context"
	"sync"
	"time"
)

// Source 一条回答引用的原文切片
type Source struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Turn 会话中的一轮完整问答
type Turn struct {
	UserMessage string    `json:"user_message"`
	Answer      string    `json:"answer"`
	Sources     []Source  `json:"sources,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionInfo 会话概要
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	TurnCount int       `json:"turn_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore 会话历史存储抽象
type SessionStore interface {
	// GetHistory 返回会话的全部轮次，按时间从早到晚。不存在的会话返回空切片
	GetHistory(ctx context.Context, sessionID string) ([]Turn, error)
	// Append 追加一轮问答。同一会话的并发追加串行化，轮次不会交错或丢失
	Append(ctx context.Context, sessionID string, turn Turn) error
	// Clear 清空会话历史但保留会话
	Clear(ctx context.Context, sessionID string) error
	// Delete 删除整个会话
	Delete(ctx context.Context, sessionID string) error
	// Sessions 返回当前所有会话ID
	Sessions(ctx context.Context) ([]string, error)
	// Info 返回会话概要，不存在时TurnCount为0
	Info(ctx context.Context, sessionID string) (SessionInfo, error)
	Ready() bool
}

// MemorySessionStore 进程内会话存储
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionRecord
}

type sessionRecord struct {
	// 每个会话持有独立的互斥量，追加只阻塞同一会话
	mu        sync.Mutex
	turns     []Turn
	updatedAt time.Time
}

// NewMemorySessionStore 创建内存会话存储
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*sessionRecord),
	}
}

func (s *MemorySessionStore) record(sessionID string, create bool) *sessionRecord {
	s.mu.RLock()
	rec := s.sessions[sessionID]
	s.mu.RUnlock()
	if rec != nil || !create {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec = s.sessions[sessionID]; rec == nil {
		rec = &sessionRecord{}
		s.sessions[sessionID] = rec
	}
	return rec
}

func (s *MemorySessionStore) GetHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	rec := s.record(sessionID, false)
	if rec == nil {
		return []Turn{}, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]Turn, len(rec.turns))
	copy(out, rec.turns)
	return out, nil
}

func (s *MemorySessionStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	rec := s.record(sessionID, true)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	rec.turns = append(rec.turns, turn)
	rec.updatedAt = time.Now()
	return nil
}

func (s *MemorySessionStore) Clear(ctx context.Context, sessionID string) error {
	rec := s.record(sessionID, false)
	if rec == nil {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.turns = nil
	rec.updatedAt = time.Now()
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessionStore) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemorySessionStore) Info(ctx context.Context, sessionID string) (SessionInfo, error) {
	info := SessionInfo{SessionID: sessionID}
	rec := s.record(sessionID, false)
	if rec == nil {
		return info, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	info.TurnCount = len(rec.turns)
	info.UpdatedAt = rec.updatedAt
	return info, nil
}

func (s *MemorySessionStore) Ready() bool {
	return true
}
