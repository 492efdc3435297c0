package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultViewerSetKey    = "es:viewers"
	defaultViewerSeenKeyNS = "es:viewer_seen:"
	defaultViewerSeenTTL   = 90 * time.Second
	defaultOfflineGrace    = 5 * time.Second
	defaultReaperInterval  = 60 * time.Second
)

// ViewerPresence tracks connected viewers, mirrors presence in Redis so
// every instance sees the same audience, and emits online/offline
// transitions with an offline grace window to absorb quick reconnects.
type ViewerPresence struct {
	rdb *redis.Client

	mu              sync.RWMutex
	localConnCounts map[string]int
	offlineTimers   map[string]*time.Timer
	offlineNotified map[string]bool

	viewerSetKey  string
	seenKeyPrefix string
	seenTTL       time.Duration
	offlineGrace  time.Duration
	reaperEvery   time.Duration

	onViewerOnline  func(uid string)
	onViewerOffline func(uid string)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewViewerPresence creates a tracker and starts a Redis reaper when
// Redis is available.
func NewViewerPresence(rdb *redis.Client) *ViewerPresence {
	p := &ViewerPresence{
		rdb:             rdb,
		localConnCounts: make(map[string]int),
		offlineTimers:   make(map[string]*time.Timer),
		offlineNotified: make(map[string]bool),
		viewerSetKey:    defaultViewerSetKey,
		seenKeyPrefix:   defaultViewerSeenKeyNS,
		seenTTL:         defaultViewerSeenTTL,
		offlineGrace:    defaultOfflineGrace,
		reaperEvery:     defaultReaperInterval,
		stopCh:          make(chan struct{}),
	}

	if p.rdb != nil {
		go p.reaperLoop()
	}

	return p
}

// SetCallbacks installs transition callbacks.
func (p *ViewerPresence) SetCallbacks(onOnline, onOffline func(uid string)) {
	p.mu.Lock()
	p.onViewerOnline = onOnline
	p.onViewerOffline = onOffline
	p.mu.Unlock()
}

// SetOfflineGracePeriod overrides the offline grace window.
func (p *ViewerPresence) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.offlineGrace = d
	p.mu.Unlock()
}

// Stop halts the reaper and cancels pending offline timers.
func (p *ViewerPresence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for uid, timer := range p.offlineTimers {
			if timer != nil {
				timer.Stop()
			}
			delete(p.offlineTimers, uid)
		}
		p.mu.Unlock()
	})
}

// Register records a new connection for the viewer.
func (p *ViewerPresence) Register(ctx context.Context, uid string) {
	wasOnline := p.IsOnline(ctx, uid)

	p.mu.Lock()
	if t, ok := p.offlineTimers[uid]; ok {
		t.Stop()
		delete(p.offlineTimers, uid)
	}
	p.localConnCounts[uid]++
	p.offlineNotified[uid] = false
	p.mu.Unlock()

	p.Touch(ctx, uid)
	if !wasOnline {
		p.emitOnline(uid)
	}
}

// Touch refreshes the viewer's presence in Redis.
func (p *ViewerPresence) Touch(ctx context.Context, uid string) {
	if p.rdb == nil {
		return
	}
	if err := p.rdb.SAdd(ctx, p.viewerSetKey, uid).Err(); err != nil {
		log.Printf("presence touch SADD failed for %s: %v", uid, err)
	}
	if err := p.rdb.SetEx(ctx, p.seenKey(uid), strconv.FormatInt(time.Now().Unix(), 10), p.seenTTL).Err(); err != nil {
		log.Printf("presence touch SETEX failed for %s: %v", uid, err)
	}
}

// Unregister records a closed connection; the last close arms the grace
// timer instead of going offline immediately.
func (p *ViewerPresence) Unregister(ctx context.Context, uid string) {
	p.mu.Lock()
	if n, ok := p.localConnCounts[uid]; ok {
		n--
		if n > 0 {
			p.localConnCounts[uid] = n
			p.mu.Unlock()
			return
		}
		delete(p.localConnCounts, uid)
	}

	if t, ok := p.offlineTimers[uid]; ok {
		t.Stop()
	}
	grace := p.offlineGrace
	p.offlineTimers[uid] = time.AfterFunc(grace, func() {
		p.finalizeOffline(context.Background(), uid)
	})
	p.mu.Unlock()
}

// IsOnline reports whether the viewer has a live connection on any
// instance.
func (p *ViewerPresence) IsOnline(ctx context.Context, uid string) bool {
	p.mu.RLock()
	if p.localConnCounts[uid] > 0 {
		p.mu.RUnlock()
		return true
	}
	p.mu.RUnlock()

	if p.rdb == nil {
		return false
	}

	exists, err := p.rdb.Exists(ctx, p.seenKey(uid)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// ViewerCount returns the current audience size across instances, with
// local connections as a fallback when Redis is unavailable.
func (p *ViewerPresence) ViewerCount(ctx context.Context) int {
	if p.rdb != nil {
		n, err := p.rdb.SCard(ctx, p.viewerSetKey).Result()
		if err == nil {
			return int(n)
		}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.localConnCounts)
}

// reapOnce is test-visible and performs one cleanup pass over viewers
// whose heartbeat key has expired.
func (p *ViewerPresence) reapOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}

	members, err := p.rdb.SMembers(ctx, p.viewerSetKey).Result()
	if err != nil {
		return
	}

	for _, uid := range members {
		exists, existsErr := p.rdb.Exists(ctx, p.seenKey(uid)).Result()
		if existsErr != nil || exists > 0 {
			continue
		}

		_ = p.rdb.SRem(ctx, p.viewerSetKey, uid).Err()

		p.mu.RLock()
		hasLocal := p.localConnCounts[uid] > 0
		p.mu.RUnlock()
		if !hasLocal {
			p.emitOffline(uid)
		}
	}
}

func (p *ViewerPresence) reaperLoop() {
	ctx := context.Background()
	ticker := time.NewTicker(p.reaperEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(ctx)
		}
	}
}

func (p *ViewerPresence) finalizeOffline(ctx context.Context, uid string) {
	p.mu.Lock()
	if p.localConnCounts[uid] > 0 {
		delete(p.offlineTimers, uid)
		p.mu.Unlock()
		return
	}
	delete(p.offlineTimers, uid)
	p.mu.Unlock()

	if p.rdb != nil {
		exists, err := p.rdb.Exists(ctx, p.seenKey(uid)).Result()
		if err == nil && exists > 0 {
			// Another instance refreshed presence. Keep the viewer online.
			return
		}
		_ = p.rdb.SRem(ctx, p.viewerSetKey, uid).Err()
	}

	p.emitOffline(uid)
}

func (p *ViewerPresence) emitOnline(uid string) {
	p.mu.Lock()
	p.offlineNotified[uid] = false
	cb := p.onViewerOnline
	p.mu.Unlock()
	if cb != nil {
		cb(uid)
	}
}

func (p *ViewerPresence) emitOffline(uid string) {
	p.mu.Lock()
	if p.offlineNotified[uid] {
		p.mu.Unlock()
		return
	}
	p.offlineNotified[uid] = true
	cb := p.onViewerOffline
	p.mu.Unlock()
	if cb != nil {
		cb(uid)
	}
}

func (p *ViewerPresence) seenKey(uid string) string {
	return p.seenKeyPrefix + uid
}
