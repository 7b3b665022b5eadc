package bot

import (
	"fmt"
	"strings"
	"wedsync/entity"
)

func formatResponse(h *entity.Household) string {
	switch h.Status {
	case entity.StatusConfirmed:
		return fmt.Sprintf("✅ *%s* \\(`%s`\\) confirmed %d of %d",
			Sanitize(h.Name), Sanitize(h.Code), h.ConfirmedAttendees, h.TotalSlots)
	case entity.StatusRejected:
		return fmt.Sprintf("❌ *%s* \\(`%s`\\) declined",
			Sanitize(h.Name), Sanitize(h.Code))
	default:
		return fmt.Sprintf("*%s* \\(`%s`\\) is %s",
			Sanitize(h.Name), Sanitize(h.Code), Sanitize(string(h.Status)))
	}
}

func formatStats(s *entity.Stats) string {
	return fmt.Sprintf(
		"*Responses*\n"+
			"Households: `%d`\n"+
			"Confirmed: `%d` \\(`%d` guests of `%d` seats\\)\n"+
			"Declined: `%d`\n"+
			"Pending: `%d`",
		s.TotalFamilies,
		s.ConfirmedFamilies, s.ConfirmedAttendees, s.TotalSlots,
		s.RejectedFamilies,
		s.PendingFamilies,
	)
}

func formatSlots(slots []*entity.AvailableSlot) string {
	if len(slots) == 0 {
		return "No households with open seats\\."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*Seats* \\(%d households\\)\n\n", len(slots)))
	for _, s := range slots {
		sb.WriteString(fmt.Sprintf("`%s` %s: %d/%d, %d free\n",
			Sanitize(s.FamilyCode), Sanitize(s.FamilyName), s.ConfirmedSlots, s.TotalSlots, s.AvailableSlots))
	}
	return sb.String()
}

// formatHistory renders at most limit entries; history is expected newest first.
func formatHistory(history []*entity.HistoryEntry, limit int) string {
	if len(history) == 0 {
		return "No responses yet\\."
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	var sb strings.Builder
	sb.WriteString("*Latest responses*\n\n")
	for _, e := range history {
		sb.WriteString(fmt.Sprintf("`%s` %s: %s",
			e.RespondedAt.UTC().Format("02.01 15:04"), Sanitize(e.FamilyName), Sanitize(string(e.Status))))
		if e.Status == entity.StatusConfirmed {
			sb.WriteString(fmt.Sprintf(" %d/%d", e.ConfirmedSlots, e.TotalSlots))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
