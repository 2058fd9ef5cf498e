// Package tasks ведёт реестр выполняющихся загрузок по пользователям.
// Реестр живёт только в памяти процесса: после перезапуска записи
// теряются, чистка не требуется.
package tasks

import (
	"sync"

	"github.com/google/uuid"

	"github.com/leonidvolkov/storygram/internal/metrics"
)

// Registry — потокобезопасный реестр задач в полёте.
type Registry struct {
	mu    sync.Mutex
	tasks map[int64][]string
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[int64][]string)}
}

// Acquire регистрирует новую задачу пользователя, если количество его
// задач в полёте меньше limit. Проверка и регистрация — один атомарный шаг.
func (r *Registry) Acquire(userID int64, limit int) (taskID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tasks[userID]) >= limit {
		return "", false
	}
	taskID = uuid.NewString()
	r.tasks[userID] = append(r.tasks[userID], taskID)
	metrics.ActiveDownloads.Inc()
	return taskID, true
}

// Release снимает задачу пользователя с учёта.
func (r *Registry) Release(userID int64, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.tasks[userID]
	for i, id := range ids {
		if id == taskID {
			r.tasks[userID] = append(ids[:i], ids[i+1:]...)
			metrics.ActiveDownloads.Dec()
			break
		}
	}
	if len(r.tasks[userID]) == 0 {
		delete(r.tasks, userID)
	}
}

// Count возвращает количество задач пользователя в полёте.
func (r *Registry) Count(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks[userID])
}

// Total возвращает количество всех задач в полёте.
func (r *Registry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, ids := range r.tasks {
		total += len(ids)
	}
	return total
}
