package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) registerPollTools() {
	r.Register(&Tool{
		Name:        "send_poll",
		Description: "Send a poll to a chat with 2-10 answer options.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id":  map[string]any{"type": "string", "description": "Chat id or @username"},
				"question": map[string]any{"type": "string", "description": "Poll question"},
				"options": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Answer options (2-10)",
				},
				"anonymous": map[string]any{
					"type":        "boolean",
					"description": "Hide voter identities (default true)",
				},
			},
			"required": []string{"chat_id", "question", "options"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Sending a poll to %v", args["chat_id"])
		},
		Handler: r.handleSendPoll,
	})

	r.Register(&Tool{
		Name:        "stop_poll",
		Description: "Close a running poll and report the final tallies.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id":    map[string]any{"type": "string", "description": "Chat id or @username"},
				"message_id": map[string]any{"type": "integer", "description": "Id of the poll message"},
			},
			"required": []string{"chat_id", "message_id"},
		},
		Handler: r.handleStopPoll,
	})
}

func (r *Registry) handleSendPoll(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	question, err := String(args, "question")
	if err != nil {
		return "", err
	}
	options, err := StringList(args, "options")
	if err != nil {
		return "", err
	}
	if len(options) < 2 || len(options) > 10 {
		return "", invalidf("argument %q must have between 2 and 10 options, got %d", "options", len(options))
	}
	anonymous, err := OptionalBool(args, "anonymous", true)
	if err != nil {
		return "", err
	}

	msg, err := r.api.SendPoll(ctx, chatID, question, options, anonymous)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent poll %q as message %d to chat %d.", question, msg.ID, chatID), nil
}

func (r *Registry) handleStopPoll(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	messageID, err := Int(args, "message_id", 1, 1<<62)
	if err != nil {
		return "", err
	}
	poll, err := r.api.StopPoll(ctx, chatID, messageID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Poll %q closed with %d votes:\n", poll.Question, poll.TotalVotes)
	for _, o := range poll.Options {
		fmt.Fprintf(&b, "- %s: %d\n", o.Text, o.Votes)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
