package state

import (
	"sync"
	"time"
)

type entry struct {
	dialog    Dialog
	updatedAt time.Time
}

// Manager хранит диалоги пользователей в памяти процесса
type Manager struct {
	mu      sync.RWMutex
	dialogs map[int64]*entry // telegramID -> диалог
	ttl     time.Duration
	now     func() time.Time
}

// NewManager создаёт менеджер. Диалог старше ttl считается брошенным,
// ttl <= 0 отключает истечение.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		dialogs: make(map[int64]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get возвращает копию текущего диалога или пустой диалог
func (sm *Manager) Get(telegramID int64) Dialog {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	e, exists := sm.dialogs[telegramID]
	if !exists || sm.expired(e) {
		return Dialog{}
	}
	return e.dialog
}

// GetState получает текущий шаг диалога
func (sm *Manager) GetState(telegramID int64) UserState {
	return sm.Get(telegramID).State
}

// Start начинает диалог по заявке, затирая предыдущий
func (sm *Manager) Start(telegramID int64, state UserState, inquiryID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state == StateNone {
		delete(sm.dialogs, telegramID)
		return
	}

	sm.dialogs[telegramID] = &entry{
		dialog:    Dialog{State: state, InquiryID: inquiryID},
		updatedAt: sm.now(),
	}
}

// SetDates сохраняет введённые даты и переводит диалог к подтверждению.
// Возвращает false если активного диалога редактирования нет.
func (sm *Manager) SetDates(telegramID int64, dates string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	e, exists := sm.dialogs[telegramID]
	if !exists || sm.expired(e) || e.dialog.State != StateEditingInquiryDates {
		return false
	}

	e.dialog.Dates = dates
	e.dialog.State = StateConfirmingInquiryDates
	e.updatedAt = sm.now()
	return true
}

// ClearState очищает диалог пользователя
func (sm *Manager) ClearState(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.dialogs, telegramID)
}

// Sweep удаляет истёкшие диалоги и возвращает их количество
func (sm *Manager) Sweep() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id, e := range sm.dialogs {
		if sm.expired(e) {
			delete(sm.dialogs, id)
			removed++
		}
	}
	return removed
}

func (sm *Manager) expired(e *entry) bool {
	return sm.ttl > 0 && sm.now().Sub(e.updatedAt) > sm.ttl
}
