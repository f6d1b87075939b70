package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// Notifier posts cycle summaries and order events to a Slack incoming
// webhook. Delivery failures are logged and dropped: notifications must
// never affect a trading cycle's outcome.
type Notifier struct {
	http       *resty.Client
	webhookURL string
	logger     ports.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// New creates a Slack notifier for the webhook URL.
func New(webhookURL string, logger ports.Logger) (*Notifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Notifier{
		http:       resty.New().SetTimeout(10 * time.Second),
		webhookURL: webhookURL,
		logger:     logger,
	}, nil
}

func (n *Notifier) post(ctx context.Context, text string) {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(n.webhookURL)
	if err != nil {
		n.logger.Warn(ctx, "Slack notification failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if !resp.IsSuccess() {
		n.logger.Warn(ctx, "Slack webhook returned non-2xx", map[string]interface{}{
			"status": resp.StatusCode(), "body": resp.String(),
		})
	}
}

// NotifyCycle posts a one-message summary of a finished buy or sell cycle.
func (n *Notifier) NotifyCycle(ctx context.Context, summary *ports.CycleSummary) {
	if summary == nil {
		return
	}

	var b strings.Builder
	mode := ""
	if summary.DryRun {
		mode = " (dry run)"
	}
	elapsed := time.Duration(summary.FinishedAt-summary.StartedAt) * time.Second
	fmt.Fprintf(&b, "*%s cycle finished%s* account=%s\n", strings.ToUpper(summary.JobType), mode, summary.AccountID)
	fmt.Fprintf(&b, "evaluated=%d skipped=%d submitted=%d failed=%d elapsed=%s",
		summary.Evaluated, summary.Skipped, summary.Submitted, summary.Failed, elapsed)
	for _, o := range summary.Orders {
		fmt.Fprintf(&b, "\n• %s", orderLine(o))
	}
	n.post(ctx, b.String())
}

// NotifyOrder posts a single order event.
func (n *Notifier) NotifyOrder(ctx context.Context, entry *domain.OrderLog) {
	if entry == nil {
		return
	}
	n.post(ctx, orderLine(entry))
}

func orderLine(o *domain.OrderLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s x%d @ %.2f [%s]", o.Side, o.Ticker, o.Quantity, o.Price, o.Status)
	if o.SellKind != "" {
		fmt.Fprintf(&b, " kind=%s", o.SellKind)
	}
	if len(o.SellReasons) > 0 {
		fmt.Fprintf(&b, " reasons=%s", strings.Join(o.SellReasons, ","))
	}
	if o.Message != "" {
		fmt.Fprintf(&b, " (%s)", o.Message)
	}
	return b.String()
}
