package events

import "context"

// Channels
const (
	ChannelCampaign = "events:campaign"
	ChannelAlert    = "events:alert"
	ChannelInbox    = "events:inbox"
)

// Event types
const (
	EventCampaignStatusChanged = "campaign_status_changed"
	EventBatchCommitted        = "batch_committed"
	EventCampaignStatsChanged  = "campaign_stats_changed"
	EventAlertRaised           = "alert_raised"
	EventAlertDismissed        = "alert_dismissed"
	EventInboundMessage        = "inbound_message"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, handler func(stream string, event Event), streams ...string) error
}

// NopPublisher drops events. Used where no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
