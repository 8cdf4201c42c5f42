package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

const actionBlockID = "access_request_actions"

// SlackChat delivers messages through the Slack Web API.
type SlackChat struct {
	client *slack.Client
}

// NewSlackChat creates a Slack backend. apiURL overrides the Slack API base
// URL when non-empty; it must end with a slash.
func NewSlackChat(token, apiURL string) *SlackChat {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackChat{client: slack.New(token, opts...)}
}

func (s *SlackChat) Send(ctx context.Context, channel, text string, interactive *Interactive) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if interactive != nil && len(interactive.Actions) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(Blocks(text, interactive)...))
	}

	if _, _, err := s.client.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	return nil
}

// Blocks renders text and its actions as Block Kit blocks.
func Blocks(text string, interactive *Interactive) []slack.Block {
	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
		nil, nil,
	)

	elements := make([]slack.BlockElement, 0, len(interactive.Actions))
	for _, a := range interactive.Actions {
		btn := slack.NewButtonBlockElement(a.ID, a.Value,
			slack.NewTextBlockObject(slack.PlainTextType, a.Label, false, false))
		if a.Style != "" {
			btn = btn.WithStyle(slack.Style(a.Style))
		}
		elements = append(elements, btn)
	}

	return []slack.Block{section, slack.NewActionBlock(actionBlockID, elements...)}
}
