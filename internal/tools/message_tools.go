package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/alphahumanxyz/courier/internal/messenger"
)

func (r *Registry) registerMessageTools() {
	r.Register(&Tool{
		Name:        "send_message",
		Description: "Send a text message to a chat. Supports markdown formatting, replying to an existing message, and silent delivery.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"text":    map[string]any{"type": "string", "description": "Message text"},
				"markdown": map[string]any{
					"type":        "boolean",
					"description": "Render the text as markdown (default false)",
				},
				"reply_to": map[string]any{
					"type":        "integer",
					"description": "Message id to reply to",
				},
				"silent": map[string]any{
					"type":        "boolean",
					"description": "Deliver without a notification sound (default false)",
				},
			},
			"required": []string{"chat_id", "text"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Sending a message to %v", args["chat_id"])
		},
		Handler: r.handleSendMessage,
	})

	r.Register(&Tool{
		Name:        "edit_message",
		Description: "Replace the text of a previously sent message.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id":    map[string]any{"type": "string", "description": "Chat id or @username"},
				"message_id": map[string]any{"type": "integer", "description": "Id of the message to edit"},
				"text":       map[string]any{"type": "string", "description": "Replacement text"},
			},
			"required": []string{"chat_id", "message_id", "text"},
		},
		Handler: r.handleEditMessage,
	})

	r.Register(&Tool{
		Name:        "delete_message",
		Description: "Delete a message from a chat. This cannot be undone.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id":    map[string]any{"type": "string", "description": "Chat id or @username"},
				"message_id": map[string]any{"type": "integer", "description": "Id of the message to delete"},
			},
			"required": []string{"chat_id", "message_id"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Deleting message %v from %v", args["message_id"], args["chat_id"])
		},
		Handler: r.handleDeleteMessage,
	})

	r.Register(&Tool{
		Name:        "forward_message",
		Description: "Forward a message from one chat to another.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from_chat_id": map[string]any{"type": "string", "description": "Source chat id or @username"},
				"message_id":   map[string]any{"type": "integer", "description": "Id of the message to forward"},
				"to_chat_id":   map[string]any{"type": "string", "description": "Destination chat id or @username"},
			},
			"required": []string{"from_chat_id", "message_id", "to_chat_id"},
		},
		Handler: r.handleForwardMessage,
	})

	r.Register(&Tool{
		Name:        "pin_message",
		Description: "Pin or unpin a message in a chat.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id":    map[string]any{"type": "string", "description": "Chat id or @username"},
				"message_id": map[string]any{"type": "integer", "description": "Id of the message"},
				"pinned":     map[string]any{"type": "boolean", "description": "true to pin, false to unpin (default true)"},
			},
			"required": []string{"chat_id", "message_id"},
		},
		Handler: r.handlePinMessage,
	})

	r.Register(&Tool{
		Name:        "get_messages",
		Description: "Fetch the most recent messages of a chat, newest last.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of messages (default 20, max 100)",
				},
			},
			"required": []string{"chat_id"},
		},
		Handler: r.handleGetMessages,
	})

	r.Register(&Tool{
		Name:        "search_messages",
		Description: "Search a chat's history for messages matching a query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"query":   map[string]any{"type": "string", "description": "Search term"},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results (default 20, max 100)",
				},
			},
			"required": []string{"chat_id", "query"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Searching %v for %q", args["chat_id"], args["query"])
		},
		Handler: r.handleSearchMessages,
	})
}

func (r *Registry) handleSendMessage(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	text, err := String(args, "text")
	if err != nil {
		return "", err
	}
	markdown, err := OptionalBool(args, "markdown", false)
	if err != nil {
		return "", err
	}
	replyTo, err := OptionalInt(args, "reply_to", 0, 1, 1<<62)
	if err != nil {
		return "", err
	}
	silent, err := OptionalBool(args, "silent", false)
	if err != nil {
		return "", err
	}

	msg, err := r.api.SendMessage(ctx, chatID, text, messenger.SendOptions{
		Markdown: markdown,
		ReplyTo:  replyTo,
		Silent:   silent,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent message %d to chat %d.", msg.ID, chatID), nil
}

func (r *Registry) handleEditMessage(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	messageID, err := Int(args, "message_id", 1, 1<<62)
	if err != nil {
		return "", err
	}
	text, err := String(args, "text")
	if err != nil {
		return "", err
	}
	msg, err := r.api.EditMessage(ctx, chatID, messageID, text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Edited message %d in chat %d.", msg.ID, chatID), nil
}

func (r *Registry) handleDeleteMessage(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	messageID, err := Int(args, "message_id", 1, 1<<62)
	if err != nil {
		return "", err
	}
	if err := r.api.DeleteMessage(ctx, chatID, messageID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted message %d from chat %d.", messageID, chatID), nil
}

func (r *Registry) handleForwardMessage(ctx context.Context, args map[string]any) (string, error) {
	fromID, err := r.resolveChat(ctx, args, "from_chat_id")
	if err != nil {
		return "", err
	}
	messageID, err := Int(args, "message_id", 1, 1<<62)
	if err != nil {
		return "", err
	}
	toID, err := r.resolveChat(ctx, args, "to_chat_id")
	if err != nil {
		return "", err
	}
	msg, err := r.api.ForwardMessage(ctx, fromID, messageID, toID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Forwarded message %d to chat %d as message %d.", messageID, toID, msg.ID), nil
}

func (r *Registry) handlePinMessage(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	messageID, err := Int(args, "message_id", 1, 1<<62)
	if err != nil {
		return "", err
	}
	pinned, err := OptionalBool(args, "pinned", true)
	if err != nil {
		return "", err
	}
	if err := r.api.SetMessagePinned(ctx, chatID, messageID, pinned); err != nil {
		return "", err
	}
	if pinned {
		return fmt.Sprintf("Pinned message %d in chat %d.", messageID, chatID), nil
	}
	return fmt.Sprintf("Unpinned message %d in chat %d.", messageID, chatID), nil
}

func (r *Registry) handleGetMessages(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	limit, err := OptionalInt(args, "limit", 20, 1, 100)
	if err != nil {
		return "", err
	}
	msgs, err := r.api.GetMessages(ctx, chatID, int(limit))
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "No messages in this chat.", nil
	}
	return formatMessages(msgs), nil
}

func (r *Registry) handleSearchMessages(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	query, err := String(args, "query")
	if err != nil {
		return "", err
	}
	limit, err := OptionalInt(args, "limit", 20, 1, 100)
	if err != nil {
		return "", err
	}
	msgs, err := r.api.SearchMessages(ctx, chatID, query, int(limit))
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("No messages matching %q.", query), nil
	}
	return fmt.Sprintf("%d matches:\n%s", len(msgs), formatMessages(msgs)), nil
}

// messagePreviewLen bounds each listed message to one readable line.
const messagePreviewLen = 200

func formatMessages(msgs []messenger.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		sender := m.Sender
		if sender == "" {
			sender = fmt.Sprintf("user %d", m.SenderID)
		}
		// Markdown messages are stored as rendered HTML; flatten to a
		// single plain-text line for the listing.
		text := messenger.PreviewText(m.Text, messagePreviewLen)
		fmt.Fprintf(&b, "[%d] %s (%s): %s", m.ID, sender, m.SentAt.Format("2006-01-02 15:04"), text)
		if m.Edited {
			b.WriteString(" (edited)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
