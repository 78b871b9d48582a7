package capability

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"commitmentkernel/core/identity"
)

// Tier is the self-modification tier a declaration carries; rate
// limits and observation windows are both keyed by it.
type Tier int

// TierLimit pairs a tier with its (count, window) budget.
type TierLimit struct {
	Tier   Tier
	Count  uint32
	Window time.Duration
}

type limiterKey struct {
	id   identity.ID
	tier Tier
}

// RateLimiter enforces a per-(identity, tier) admission budget,
// independent of capability grants. It fast-fails the Gate before any
// heavier check runs. Each budget is a token bucket holding up to Count
// tokens and refilling at Count per Window; calls are not counted over
// a sliding window, so capacity returns gradually rather than when the
// oldest call leaves the window.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[Tier]TierLimit
	buckets map[limiterKey]*rate.Limiter
	nowFn   func() time.Time
}

// NewRateLimiter constructs a limiter configured with one (count,
// window) budget per tier.
func NewRateLimiter(limits []TierLimit) *RateLimiter {
	byTier := make(map[Tier]TierLimit, len(limits))
	for _, l := range limits {
		byTier[l.Tier] = l
	}
	return &RateLimiter{
		limits:  byTier,
		buckets: make(map[limiterKey]*rate.Limiter),
		nowFn:   time.Now,
	}
}

// Allow reports whether the identity may proceed under tier's budget,
// consuming one unit of budget if so. A tier with no configured limit
// is unrestricted.
func (r *RateLimiter) Allow(id identity.ID, tier Tier) bool {
	limit, ok := r.limits[tier]
	if !ok || limit.Count == 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := limiterKey{id: id, tier: tier}
	lim, ok := r.buckets[key]
	if !ok {
		every := limit.Window / time.Duration(limit.Count)
		lim = rate.NewLimiter(rate.Every(every), int(limit.Count))
		r.buckets[key] = lim
	}
	return lim.AllowN(r.nowFn(), 1)
}
