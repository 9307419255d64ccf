package linkfilter

import (
	"context"
	"fmt"
	"strings"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"
	"guildwarden/internal/utils"
)

var keywordSignals = []string{"nitro", "free", "claim", "gift", "steam", "giveaway"}

// Module screens message links against the guild's domain lists. Allowlisted
// domains always pass; blocklisted domains, and unknown domains paired with
// bait keywords, are flagged for removal.
type Module struct {
	store *storage.Store
	audit *audit.Logger
}

func New(store *storage.Store, auditLogger *audit.Logger) *Module {
	return &Module{store: store, audit: auditLogger}
}

// CheckMessage reports whether the message carries a link that should be
// removed, with a short human-readable reason.
func (m *Module) CheckMessage(ctx context.Context, guildID, userID, content string) (bool, string, error) {
	urls := utils.ExtractURLs(content)
	if len(urls) == 0 {
		return false, "", nil
	}

	allowlist, err := m.domainSet(ctx, guildID, m.store.ListDomainAllow)
	if err != nil {
		return false, "", err
	}
	blocklist, err := m.domainSet(ctx, guildID, m.store.ListDomainBlock)
	if err != nil {
		return false, "", err
	}

	for _, raw := range urls {
		normalized, domain, err := utils.NormalizeURL(raw)
		if err != nil {
			continue
		}

		allowed, blocked := utils.DomainMatch(domain, allowlist, blocklist)
		if allowed {
			continue
		}
		if blocked || hasKeywords(content) {
			detail := fmt.Sprintf("type=LINK domain=%s url=%s", domain, normalized)
			m.audit.Log(ctx, audit.LevelWarn, guildID, userID, "link_filter", detail)
			return true, "suspicious link: " + normalized, nil
		}
	}
	return false, "", nil
}

func (m *Module) domainSet(ctx context.Context, guildID string, list func(context.Context, string) ([]string, error)) (map[string]struct{}, error) {
	domains, err := list(ctx, guildID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		set[domain] = struct{}{}
	}
	return set, nil
}

func hasKeywords(content string) bool {
	lower := strings.ToLower(content)
	for _, keyword := range keywordSignals {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
