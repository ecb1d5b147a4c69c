package conversation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flockwise/agrirag/normalize"
)

// EntitySet 单次查询中抽取到的实体集合
type EntitySet struct {
	Breed   string            `json:"breed,omitempty"`
	AgeDays int               `json:"age_days,omitempty"`
	Sex     normalize.Sex     `json:"sex,omitempty"`
	Metric  normalize.Metric  `json:"metric,omitempty"`
}

// IsEmpty 是否没有任何实体
func (e EntitySet) IsEmpty() bool {
	return e.Breed == "" && e.AgeDays == 0 && e.Sex == normalize.SexUnknown &&
		e.Metric == normalize.MetricUnknown
}

// Snapshot 历史快照（更新前的上下文状态）
type Snapshot struct {
	Breed     string           `json:"breed,omitempty"`
	AgeDays   int              `json:"age_days,omitempty"`
	Sex       normalize.Sex    `json:"sex,omitempty"`
	Metric    normalize.Metric `json:"metric,omitempty"`
	Intent    string           `json:"intent,omitempty"`
	RawQuery  string           `json:"raw_query,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Context 单会话的会话状态。
// 字段只会被新值覆盖，缺失信号回退到最近已知值；历史只追加。
type Context struct {
	Breed    string           `json:"breed,omitempty"`
	AgeDays  int              `json:"age_days,omitempty"`
	Sex      normalize.Sex    `json:"sex,omitempty"`
	Metric   normalize.Metric `json:"metric,omitempty"`
	Intent   string           `json:"intent,omitempty"`
	RawQuery string           `json:"raw_query,omitempty"`

	History   []Snapshot `json:"history,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasEntities 上下文是否携带任何实体
func (c *Context) HasEntities() bool {
	if c == nil {
		return false
	}
	return c.Breed != "" || c.AgeDays != 0 || c.Sex != normalize.SexUnknown ||
		c.Metric != normalize.MetricUnknown
}

// snapshot 生成当前状态的历史快照
func (c *Context) snapshot() Snapshot {
	return Snapshot{
		Breed:     c.Breed,
		AgeDays:   c.AgeDays,
		Sex:       c.Sex,
		Metric:    c.Metric,
		Intent:    c.Intent,
		RawQuery:  c.RawQuery,
		Timestamp: c.UpdatedAt,
	}
}

// merge 将新实体合并进上下文：仅当前查询提供了新值时覆盖。
func (c *Context) merge(entities EntitySet, intent, rawQuery string, now time.Time) {
	// 旧状态先入历史，多步回溯可用
	if !c.UpdatedAt.IsZero() {
		c.History = append(c.History, c.snapshot())
	}

	if entities.Breed != "" {
		c.Breed = entities.Breed
	}
	if entities.AgeDays != 0 {
		c.AgeDays = entities.AgeDays
	}
	if entities.Sex != normalize.SexUnknown {
		c.Sex = entities.Sex
	}
	if entities.Metric != normalize.MetricUnknown {
		c.Metric = entities.Metric
	}
	if intent != "" {
		c.Intent = intent
	}
	c.RawQuery = rawQuery
	c.UpdatedAt = now
}

// =============================================================================
// 会话管理器
// =============================================================================

// 默认会话闲置 TTL：超过该时长未更新的会话被回收
const defaultSessionTTL = 30 * time.Minute

// Manager 按会话 ID 管理上下文。
// 会话之间互不共享；生命周期由调用方显式持有（无包级单例）。
// 闲置超过 TTL 的会话在读取时按不存在处理，并在写入时顺带清扫。
type Manager struct {
	sessions  map[string]*Context
	mu        sync.RWMutex
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
	logger    *zap.Logger
}

// NewManager 创建会话管理器
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Context),
		ttl:      defaultSessionTTL,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "conversation")),
	}
}

// expired 会话是否已闲置超时
func (m *Manager) expired(ctx *Context, now time.Time) bool {
	return !ctx.UpdatedAt.IsZero() && now.Sub(ctx.UpdatedAt) > m.ttl
}

// Get 返回会话上下文的一份拷贝；会话不存在或已闲置超时时返回 nil。
func (m *Manager) Get(sessionID string) *Context {
	now := m.now()

	m.mu.RLock()
	ctx, ok := m.sessions[sessionID]
	if ok && m.expired(ctx, now) {
		ok = false
	}
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	clone := *ctx
	clone.History = append([]Snapshot(nil), ctx.History...)
	m.mu.RUnlock()
	return &clone
}

// Update 将本轮抽取结果合并进会话上下文。
// 会话不存在或已闲置超时时重新开始（首轮查询）。
func (m *Manager) Update(sessionID, rawQuery, intent string, entities EntitySet) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(now)

	ctx, ok := m.sessions[sessionID]
	if !ok || m.expired(ctx, now) {
		ctx = &Context{}
		m.sessions[sessionID] = ctx
	}
	ctx.merge(entities, intent, rawQuery, now)

	m.logger.Debug("context updated",
		zap.String("session_id", sessionID),
		zap.String("breed", ctx.Breed),
		zap.Int("age_days", ctx.AgeDays),
		zap.String("metric", string(ctx.Metric)))
}

// sweepLocked 周期性清扫闲置会话；调用方须持有写锁
func (m *Manager) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now

	removed := 0
	for id, ctx := range m.sessions {
		if m.expired(ctx, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("idle sessions swept", zap.Int("removed", removed))
	}
}

// Reset 显式清空会话上下文
func (m *Manager) Reset(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Len 当前会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
