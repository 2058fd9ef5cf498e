// Package sessionpool управляет набором авторизованных пользовательских
// MTProto-сессий и раздаёт их по кругу. Курсор ротации — общее состояние:
// каждый вызов Next сдвигает его независимо от того, кто вызвал, что даёт
// равномерное распределение нагрузки по сессиям, но не справедливость
// между запросами.
package sessionpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gotd/td/tg"

	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/metrics"
)

// ErrNoActiveSessions возвращается при пустой активной ротации.
var ErrNoActiveSessions = errors.New("no active sessions")

// ErrAuthenticationFailed возвращается, когда сессия не проходит авторизацию.
var ErrAuthenticationFailed = errors.New("session authentication failed")

// Conn — авторизованное соединение, выдаваемое пулом. Вызывающая сторона
// одалживает его на время одной операции и не должна удерживать дольше.
type Conn interface {
	// Raw возвращает RPC-клиент соединения.
	Raw() *tg.Client
	// Stop завершает соединение.
	Stop() error
}

// Connector устанавливает и авторизует соединение по строковой сессии.
type Connector interface {
	Connect(ctx context.Context, stringSession string) (Conn, error)
}

// Pool хранит соединения по имени и ведёт активную ротацию.
type Pool struct {
	mu        sync.Mutex
	connector Connector
	sessions  map[string]Conn
	active    []string
	cursor    int
	log       *slog.Logger
}

// New создаёт пустой пул с переданным способом установки соединений.
func New(connector Connector, log *slog.Logger) *Pool {
	return &Pool{
		connector: connector,
		sessions:  make(map[string]Conn),
		log:       log,
	}
}

// Register устанавливает соединение и добавляет его в ротацию под именем name.
// При неудачной авторизации ничего не сохраняется. Одноимённая сессия
// молча перезаписывается — избегать дублей обязан вызывающий.
func (p *Pool) Register(ctx context.Context, name, stringSession string) error {
	const op = "sessionpool.Register"

	conn, err := p.connector.Connect(ctx, stringSession)
	if err != nil {
		p.log.Error("failed to register session", slog.String("name", name), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.sessions[name]; ok {
		if err := old.Stop(); err != nil {
			p.log.Warn("failed to stop replaced session", slog.String("name", name), sl.Err(err))
		}
		p.sessions[name] = conn
		metrics.ActiveSessions.Set(float64(len(p.active)))
		return nil
	}

	p.sessions[name] = conn
	p.active = append(p.active, name)
	metrics.ActiveSessions.Set(float64(len(p.active)))
	p.log.Info("session registered", slog.String("name", name), slog.Int("active", len(p.active)))
	return nil
}

// Next сдвигает курсор ротации на один шаг и возвращает соединение
// на новой позиции. Сдвиг курсора — единый атомарный шаг: два
// конкурентных вызова никогда не получают один и тот же сдвиг.
func (p *Pool) Next() (Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.active) == 0 {
		return nil, ErrNoActiveSessions
	}
	p.cursor = (p.cursor + 1) % len(p.active)
	return p.sessions[p.active[p.cursor]], nil
}

// Deregister завершает соединение и убирает его из ротации.
// Возвращает false, если имя неизвестно.
func (p *Pool) Deregister(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, ok := p.sessions[name]
	if !ok {
		return false
	}
	if err := conn.Stop(); err != nil {
		p.log.Warn("failed to stop session", slog.String("name", name), sl.Err(err))
	}
	delete(p.sessions, name)
	for i, n := range p.active {
		if n == name {
			p.active = append(p.active[:i], p.active[i+1:]...)
			if p.cursor >= len(p.active) {
				p.cursor = 0
			}
			break
		}
	}
	metrics.ActiveSessions.Set(float64(len(p.active)))
	p.log.Info("session deregistered", slog.String("name", name), slog.Int("active", len(p.active)))
	return true
}

// Names возвращает имена сессий в порядке ротации.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, len(p.active))
	copy(names, p.active)
	return names
}

// Len возвращает размер активной ротации.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Close завершает все соединения пула.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, conn := range p.sessions {
		if err := conn.Stop(); err != nil {
			p.log.Warn("failed to stop session", slog.String("name", name), sl.Err(err))
		}
	}
	p.sessions = make(map[string]Conn)
	p.active = nil
	p.cursor = 0
	metrics.ActiveSessions.Set(0)
}
