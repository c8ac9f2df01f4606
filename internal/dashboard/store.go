package dashboard

import (
	"sync"
	"time"

	"github.com/classroomapp/adminconsole/internal/adminapi"
)

// Slot names one independently refreshed piece of dashboard state.
type Slot string

const (
	SlotHealth          Slot = "health"
	SlotSystemInfo      Slot = "system-info"
	SlotAuditStatistics Slot = "audit-statistics"
	SlotMonitoring      Slot = "monitoring-statistics"
	SlotCriticalMetrics Slot = "critical-metrics"
	SlotUserActivity    Slot = "user-activity"
)

// Slots lists every slot in batch order.
var Slots = []Slot{
	SlotHealth,
	SlotSystemInfo,
	SlotAuditStatistics,
	SlotMonitoring,
	SlotCriticalMetrics,
	SlotUserActivity,
}

// Snapshot is a point-in-time copy of every slot. A nil field means the slot
// has never been fetched successfully. Slots may reflect different instants.
type Snapshot struct {
	Health          *adminapi.SystemHealth           `json:"health"`
	SystemInfo      *adminapi.SystemInfo             `json:"systemInfo"`
	AuditStatistics *adminapi.AuditStatistics        `json:"auditStatistics"`
	Monitoring      *adminapi.MonitoringStatistics   `json:"monitoringStatistics"`
	CriticalMetrics []adminapi.Metric                `json:"criticalMetrics"`
	UserActivity    *adminapi.UserActivityStatistics `json:"userActivity"`

	// FetchedAt holds the time of the last successful fetch per slot.
	FetchedAt map[Slot]time.Time `json:"fetchedAt"`
}

// Has reports whether slot has ever been filled.
func (s Snapshot) Has(slot Slot) bool {
	_, ok := s.FetchedAt[slot]
	return ok
}

// Store holds the latest successful value of each slot. Each slot is
// replaced wholesale and independently; a failed fetch never touches it.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snap: Snapshot{FetchedAt: make(map[Slot]time.Time)}}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.snap
	out.FetchedAt = make(map[Slot]time.Time, len(s.snap.FetchedAt))
	for k, v := range s.snap.FetchedAt {
		out.FetchedAt[k] = v
	}
	if s.snap.CriticalMetrics != nil {
		out.CriticalMetrics = append([]adminapi.Metric(nil), s.snap.CriticalMetrics...)
	}
	return out
}

func (s *Store) set(slot Slot, at time.Time, apply func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply(&s.snap)
	s.snap.FetchedAt[slot] = at
}

// SetHealth replaces the health slot.
func (s *Store) SetHealth(v *adminapi.SystemHealth, at time.Time) {
	s.set(SlotHealth, at, func(snap *Snapshot) { snap.Health = v })
}

// SetSystemInfo replaces the system-info slot.
func (s *Store) SetSystemInfo(v *adminapi.SystemInfo, at time.Time) {
	s.set(SlotSystemInfo, at, func(snap *Snapshot) { snap.SystemInfo = v })
}

// SetAuditStatistics replaces the audit-statistics slot.
func (s *Store) SetAuditStatistics(v *adminapi.AuditStatistics, at time.Time) {
	s.set(SlotAuditStatistics, at, func(snap *Snapshot) { snap.AuditStatistics = v })
}

// SetMonitoring replaces the monitoring-statistics slot.
func (s *Store) SetMonitoring(v *adminapi.MonitoringStatistics, at time.Time) {
	s.set(SlotMonitoring, at, func(snap *Snapshot) { snap.Monitoring = v })
}

// SetCriticalMetrics replaces the critical-metrics slot.
func (s *Store) SetCriticalMetrics(v []adminapi.Metric, at time.Time) {
	s.set(SlotCriticalMetrics, at, func(snap *Snapshot) { snap.CriticalMetrics = v })
}

// SetUserActivity replaces the user-activity slot.
func (s *Store) SetUserActivity(v *adminapi.UserActivityStatistics, at time.Time) {
	s.set(SlotUserActivity, at, func(snap *Snapshot) { snap.UserActivity = v })
}
