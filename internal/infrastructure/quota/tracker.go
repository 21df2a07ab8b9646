package quota

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nutriagg/backend/internal/domain"
)

const keyPrefix = "quota:"

// Unlimited marks a provider without a daily call ceiling.
const Unlimited = -1

// record is the persisted per-provider counter state.
type record struct {
	CallsToday     int    `json:"callsToday"`
	CallsThisMonth int    `json:"callsThisMonth"`
	LastResetDate  string `json:"lastResetDate"` // 2006-01-02
	Quota          int    `json:"quota"`
}

// registration holds a provider's configured limits.
type registration struct {
	quota    int
	priority int
}

// Tracker counts provider calls against daily quotas with lazy daily
// and monthly reset. It is advisory only: CanMakeCall never blocks a
// caller, it just answers whether the provider should still be called.
type Tracker struct {
	kv        domain.KVStore
	mutex     sync.Mutex
	providers map[string]registration

	now func() time.Time // injectable for testing
}

// NewTracker creates a tracker persisting counters through kv.
func NewTracker(kv domain.KVStore) *Tracker {
	return &Tracker{
		kv:        kv,
		providers: make(map[string]registration),
		now:       time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Register declares a provider's quota ceiling (Unlimited for none) and
// waterfall priority. Call once per provider at startup.
func (t *Tracker) Register(name string, quota, priority int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.providers[name] = registration{quota: quota, priority: priority}
}

// load reads a provider's record, applying any pending daily/monthly
// reset. Caller holds the lock.
func (t *Tracker) load(name string) record {
	reg := t.providers[name]
	rec := record{Quota: reg.quota, LastResetDate: t.today()}

	raw, err := t.kv.Get(keyPrefix + name)
	if err == nil {
		var stored record
		if jsonErr := json.Unmarshal(raw, &stored); jsonErr == nil {
			rec = stored
			rec.Quota = reg.quota // config wins over persisted ceiling
		}
	}

	today := t.today()
	if rec.LastResetDate != today {
		// New month zeroes the monthly counter too.
		if len(rec.LastResetDate) >= 7 && rec.LastResetDate[:7] != today[:7] {
			rec.CallsThisMonth = 0
		}
		rec.CallsToday = 0
		rec.LastResetDate = today
	}
	return rec
}

// save persists a provider's record. Caller holds the lock.
func (t *Tracker) save(name string, rec record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = t.kv.Set(keyPrefix+name, raw)
}

func (t *Tracker) today() string {
	return t.now().Format("2006-01-02")
}

// TrackCall records one successful call against the provider. Call it
// only after the provider responded; transport failures must not
// consume quota.
func (t *Tracker) TrackCall(name string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec := t.load(name)
	rec.CallsToday++
	rec.CallsThisMonth++
	t.save(name, rec)
}

// CanMakeCall answers whether the provider is still under its daily
// quota. Unlimited providers always admit.
func (t *Tracker) CanMakeCall(name string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec := t.load(name)
	if rec.Quota < 0 {
		return true
	}
	return rec.CallsToday < rec.Quota
}

// Remaining returns the calls left today, or Unlimited.
func (t *Tracker) Remaining(name string) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rec := t.load(name)
	if rec.Quota < 0 {
		return Unlimited
	}
	remaining := rec.Quota - rec.CallsToday
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ResetDaily zeroes today's counter for every registered provider.
func (t *Tracker) ResetDaily() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for name := range t.providers {
		rec := t.load(name)
		rec.CallsToday = 0
		rec.LastResetDate = t.today()
		t.save(name, rec)
	}
}

// ResetMonthly zeroes the monthly counters for every registered provider.
func (t *Tracker) ResetMonthly() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for name := range t.providers {
		rec := t.load(name)
		rec.CallsThisMonth = 0
		t.save(name, rec)
	}
}

// UsageStats reports per-provider counters and remaining headroom.
func (t *Tracker) UsageStats() map[string]domain.ProviderUsage {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	stats := make(map[string]domain.ProviderUsage, len(t.providers))
	for name := range t.providers {
		rec := t.load(name)
		usage := domain.ProviderUsage{
			CallsToday:     rec.CallsToday,
			CallsThisMonth: rec.CallsThisMonth,
			Quota:          rec.Quota,
			Remaining:      Unlimited,
		}
		if rec.Quota >= 0 {
			usage.Remaining = rec.Quota - rec.CallsToday
			if usage.Remaining < 0 {
				usage.Remaining = 0
			}
		}
		stats[name] = usage
	}
	return stats
}

// BestAvailableProvider returns the admitted provider with the lowest
// priority number, or "none" when every provider is out of quota.
func (t *Tracker) BestAvailableProvider() string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return t.providers[names[i]].priority < t.providers[names[j]].priority
	})

	for _, name := range names {
		rec := t.load(name)
		if rec.Quota < 0 || rec.CallsToday < rec.Quota {
			return name
		}
	}
	return "none"
}
