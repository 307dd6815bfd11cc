package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dealpress/dealpress/app/database"
	"github.com/dealpress/dealpress/app/deal"
	"github.com/dealpress/dealpress/app/rules"
)

// Attempt reports one dispatch to one channel. A failed channel does not
// undo successful ones: a rule result published to some channels and not
// others is a valid terminal state.
type Attempt struct {
	RuleName          string
	SKU               string
	Channel           rules.RuleChannel
	Success           bool
	ExternalMessageID string
	Error             string
}

// Dispatcher fans generated copy out to a rule's channels. Channel failures
// are isolated per channel and never retried here: retrying a publish can
// duplicate a public post, so retry policy stays with the caller.
type Dispatcher struct {
	publisher ChannelPublisher
	attempts  database.AttemptRepository
}

func NewDispatcher(publisher ChannelPublisher, attempts database.AttemptRepository) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		attempts:  attempts,
	}
}

func (d *Dispatcher) Run(ctx context.Context, text string, l deal.Listing, rule *rules.Rule) ([]Attempt, error) {
	// A rule without channels must not pass validation; reaching this point
	// with one is a defect upstream, not a condition to recover from.
	if len(rule.Channels) == 0 {
		return nil, fmt.Errorf("rule %s has no channels configured", rule.Name)
	}

	attempts := make([]Attempt, 0, len(rule.Channels))
	for _, channel := range rule.Channels {
		attempt := Attempt{
			RuleName: rule.Name,
			SKU:      l.SKU,
			Channel:  channel,
		}

		result, err := d.publisher.Publish(ctx, channel, text, l.ImageURL)
		if err != nil {
			attempt.Error = err.Error()
			slog.Warn("Channel publish failed", "rule", rule.Name, "sku", l.SKU, "channel", channel.Type, "target", channel.Target, "error", err)
		} else {
			attempt.Success = result.Success
			attempt.ExternalMessageID = result.ExternalMessageID
			slog.Info("Published", "rule", rule.Name, "sku", l.SKU, "channel", channel.Type, "target", channel.Target, "message_id", result.ExternalMessageID)
		}

		d.record(attempt)
		attempts = append(attempts, attempt)
	}

	return attempts, nil
}

func (d *Dispatcher) record(attempt Attempt) {
	if d.attempts == nil {
		return
	}
	err := d.attempts.RecordAttempt(database.PublishAttempt{
		RuleName:          attempt.RuleName,
		SKU:               attempt.SKU,
		ChannelType:       attempt.Channel.Type,
		ChannelTarget:     attempt.Channel.Target,
		Success:           attempt.Success,
		ExternalMessageID: attempt.ExternalMessageID,
		Error:             attempt.Error,
	})
	if err != nil {
		slog.Warn("Failed to record publish attempt", "rule", attempt.RuleName, "sku", attempt.SKU, "error", err)
	}
}
