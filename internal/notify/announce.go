package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sharpline/valuebot/internal/domain"
)

// eventTitles maps engine audit events to operator-facing titles.
var eventTitles = map[string]string{
	domain.AuditValueBetFound:  "Value bet found",
	domain.AuditBetDispatched:  "Bet dispatched",
	domain.AuditBetRejected:    "Bet rejected",
	domain.AuditBetFailed:      "Bet failed",
	domain.AuditBetUnknown:     "Bet outcome unknown",
	domain.AuditFeedDisconnect: "Feed disconnected",
	domain.AuditCredential:     "Credential event",
}

// Announce formats an engine event and delivers it asynchronously, so the
// dispatch path never waits on a webhook round-trip. Delivery errors are
// logged by the sender loop.
func (n *Notifier) Announce(ctx context.Context, event string, detail map[string]any) {
	title, ok := eventTitles[event]
	if !ok {
		title = event
	}
	message := formatDetail(detail)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := n.Notify(sendCtx, event, title, message); err != nil {
			n.logger.Warn("announce failed", slog.String("event", event), slog.Any("error", err))
		}
	}()
}

// formatDetail renders the detail map as stable "key: value" lines.
func formatDetail(detail map[string]any) string {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		switch v := detail[k].(type) {
		case float64:
			fmt.Fprintf(&b, "%s: %.2f\n", k, v)
		default:
			fmt.Fprintf(&b, "%s: %v\n", k, v)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
