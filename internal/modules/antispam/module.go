package antispam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/utils"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Module detects per-user message bursts. Counters are in-memory sliding
// windows; spam detection does not need to survive a restart.
type Module struct {
	mu      sync.Mutex
	windows map[string]*userWindow
	clock   Clock
	audit   *audit.Logger
}

type userWindow struct {
	window   *utils.SlidingWindow
	duration time.Duration
}

func New(auditLogger *audit.Logger) *Module {
	return &Module{
		windows: make(map[string]*userWindow),
		clock:   realClock{},
		audit:   auditLogger,
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

// HandleMessage records one message and reports whether the user crossed
// the guild's burst threshold. A zero threshold disables the check.
func (m *Module) HandleMessage(ctx context.Context, guildID, userID string, messages, windowSeconds int) (int, bool) {
	window := time.Duration(windowSeconds) * time.Second
	if window <= 0 {
		window = 8 * time.Second
	}

	count := m.userWindow(guildID+":"+userID, window).Add(m.clock.Now())
	if messages <= 0 || count < messages {
		return count, false
	}

	detail := fmt.Sprintf("type=SPAM value=%dmsg/%ds threshold=%d", count, windowSeconds, messages)
	m.audit.Log(ctx, audit.LevelWarn, guildID, userID, "anti_spam", detail)
	return count, true
}

func (m *Module) userWindow(key string, duration time.Duration) *utils.SlidingWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.windows[key]
	if entry == nil || entry.duration != duration {
		entry = &userWindow{window: utils.NewSlidingWindow(duration), duration: duration}
		m.windows[key] = entry
	}
	return entry.window
}
