package analytics

import (
	"context"
	"time"

	"guildwarden/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

// Report aggregates the guild's audit trail and activity totals for the
// operator report command.
type Report struct {
	Total        int
	ByLevel      map[string]int
	ByEvent      map[string]int
	ActiveUsers  int
	TopEscalated []string
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ByLevel: make(map[string]int),
		ByEvent: make(map[string]int),
	}
	escalated := make(map[string]bool)
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.Level == "CRIT" && log.UserID != "" && !escalated[log.UserID] {
			escalated[log.UserID] = true
			report.TopEscalated = append(report.TopEscalated, log.UserID)
		}
	}

	active, err := s.store.CountProgression(ctx, guildID)
	if err != nil {
		return Report{}, err
	}
	report.ActiveUsers = active
	return report, nil
}
