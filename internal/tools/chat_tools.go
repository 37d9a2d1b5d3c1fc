package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) registerChatTools() {
	r.Register(&Tool{
		Name:        "get_chat",
		Description: "Get details of a chat: title, kind, member count, pinned/archived/muted flags, and unread count.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{
					"type":        "string",
					"description": "Chat id or @username",
				},
			},
			"required": []string{"chat_id"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Looking up chat %v", args["chat_id"])
		},
		Handler: r.handleGetChat,
	})

	r.Register(&Tool{
		Name:        "list_chats",
		Description: "List the user's chats, most recent first. Returns id, title, kind, and unread count for each.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of chats to return (default 20, max 100)",
				},
			},
		},
		Handler: r.handleListChats,
	})

	r.Register(&Tool{
		Name:        "find_chat",
		Description: "Find a chat by (partial) title in the locally cached chat list. Faster than list_chats when the title is known; no network round-trip.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Chat title or a fragment of it (case-insensitive)",
				},
			},
			"required": []string{"title"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Finding chat %q", args["title"])
		},
		Handler: r.handleFindChat,
	})

	r.Register(&Tool{
		Name:        "create_group",
		Description: "Create a new group chat with the given title and initial members.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Group title",
				},
				"member_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"description": "User ids to add as initial members",
				},
			},
			"required": []string{"title"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Creating group %q", args["title"])
		},
		Handler: r.handleCreateGroup,
	})

	r.Register(&Tool{
		Name:        "set_chat_title",
		Description: "Rename a group or channel.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"title":   map[string]any{"type": "string", "description": "New title"},
			},
			"required": []string{"chat_id", "title"},
		},
		Handler: r.handleSetChatTitle,
	})

	r.Register(&Tool{
		Name:        "toggle_chat_pin",
		Description: "Pin or unpin a chat in the chat list.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"pinned":  map[string]any{"type": "boolean", "description": "true to pin, false to unpin"},
			},
			"required": []string{"chat_id", "pinned"},
		},
		Handler: r.handleToggleChatPin,
	})

	r.Register(&Tool{
		Name:        "archive_chat",
		Description: "Move a chat to or from the archive folder.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id":  map[string]any{"type": "string", "description": "Chat id or @username"},
				"archived": map[string]any{"type": "boolean", "description": "true to archive, false to unarchive"},
			},
			"required": []string{"chat_id", "archived"},
		},
		Handler: r.handleArchiveChat,
	})

	r.Register(&Tool{
		Name:        "mute_chat",
		Description: "Mute or unmute notifications for a chat.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"muted":   map[string]any{"type": "boolean", "description": "true to mute, false to unmute"},
			},
			"required": []string{"chat_id", "muted"},
		},
		Handler: r.handleMuteChat,
	})

	r.Register(&Tool{
		Name:        "mark_chat_read",
		Description: "Mark all messages in a chat as read.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
			},
			"required": []string{"chat_id"},
		},
		Handler: r.handleMarkChatRead,
	})

	r.Register(&Tool{
		Name:        "leave_chat",
		Description: "Leave a group or channel. This cannot be undone for channels the user does not own.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
			},
			"required": []string{"chat_id"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Leaving chat %v", args["chat_id"])
		},
		Handler: r.handleLeaveChat,
	})
}

func (r *Registry) handleGetChat(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	chat, err := r.api.GetChat(ctx, chatID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, id %d)\n", chat.Title, chat.Kind, chat.ID)
	if chat.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", chat.Username)
	}
	if chat.MemberCount > 0 {
		fmt.Fprintf(&b, "Members: %d\n", chat.MemberCount)
	}
	fmt.Fprintf(&b, "Unread: %d\n", chat.UnreadCount)
	var flags []string
	if chat.Pinned {
		flags = append(flags, "pinned")
	}
	if chat.Archived {
		flags = append(flags, "archived")
	}
	if chat.Muted {
		flags = append(flags, "muted")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Flags: %s\n", strings.Join(flags, ", "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) handleListChats(ctx context.Context, args map[string]any) (string, error) {
	limit, err := OptionalInt(args, "limit", 20, 1, 100)
	if err != nil {
		return "", err
	}
	chats, err := r.api.ListChats(ctx, int(limit))
	if err != nil {
		return "", err
	}
	if len(chats) == 0 {
		return "No chats found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d chats:\n", len(chats))
	for _, c := range chats {
		fmt.Fprintf(&b, "- [%d] %s (%s)", c.ID, c.Title, c.Kind)
		if c.UnreadCount > 0 {
			fmt.Fprintf(&b, ", %d unread", c.UnreadCount)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) handleFindChat(ctx context.Context, args map[string]any) (string, error) {
	title, err := String(args, "title")
	if err != nil {
		return "", err
	}
	if c := r.snap.FindChatByTitle(title); c != nil {
		return fmt.Sprintf("%s (%s, id %d)", c.Title, c.Kind, c.ID), nil
	}

	needle := strings.ToLower(title)
	var matches []string
	for _, c := range r.snap.Chats() {
		if strings.Contains(strings.ToLower(c.Title), needle) {
			matches = append(matches, fmt.Sprintf("- [%d] %s (%s)", c.ID, c.Title, c.Kind))
		}
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No cached chat matches %q. Try list_chats for a fresh listing.", title), nil
	}
	return fmt.Sprintf("%d matches:\n%s", len(matches), strings.Join(matches, "\n")), nil
}

func (r *Registry) handleCreateGroup(ctx context.Context, args map[string]any) (string, error) {
	title, err := String(args, "title")
	if err != nil {
		return "", err
	}
	var memberIDs []int64
	if raw, ok := args["member_ids"].([]any); ok {
		for i, item := range raw {
			n, err := asInt64(fmt.Sprintf("member_ids[%d]", i), item)
			if err != nil {
				return "", err
			}
			memberIDs = append(memberIDs, n)
		}
	}

	chat, err := r.api.CreateGroup(ctx, title, memberIDs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created group %q (id %d) with %d members.", chat.Title, chat.ID, len(memberIDs)+1), nil
}

func (r *Registry) handleSetChatTitle(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	title, err := String(args, "title")
	if err != nil {
		return "", err
	}
	if err := r.api.SetChatTitle(ctx, chatID, title); err != nil {
		return "", err
	}
	return fmt.Sprintf("Renamed chat %d to %q.", chatID, title), nil
}

func (r *Registry) handleToggleChatPin(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	pinned, err := OptionalBool(args, "pinned", true)
	if err != nil {
		return "", err
	}
	if err := r.api.SetChatPinned(ctx, chatID, pinned); err != nil {
		return "", err
	}
	if pinned {
		return fmt.Sprintf("Pinned chat %d.", chatID), nil
	}
	return fmt.Sprintf("Unpinned chat %d.", chatID), nil
}

func (r *Registry) handleArchiveChat(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	archived, err := OptionalBool(args, "archived", true)
	if err != nil {
		return "", err
	}
	if err := r.api.SetChatArchived(ctx, chatID, archived); err != nil {
		return "", err
	}
	if archived {
		return fmt.Sprintf("Archived chat %d.", chatID), nil
	}
	return fmt.Sprintf("Unarchived chat %d.", chatID), nil
}

func (r *Registry) handleMuteChat(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	muted, err := OptionalBool(args, "muted", true)
	if err != nil {
		return "", err
	}
	if err := r.api.SetChatMuted(ctx, chatID, muted); err != nil {
		return "", err
	}
	if muted {
		return fmt.Sprintf("Muted chat %d.", chatID), nil
	}
	return fmt.Sprintf("Unmuted chat %d.", chatID), nil
}

func (r *Registry) handleMarkChatRead(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	if err := r.api.MarkChatRead(ctx, chatID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Marked chat %d as read.", chatID), nil
}

func (r *Registry) handleLeaveChat(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	if err := r.api.LeaveChat(ctx, chatID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Left chat %d.", chatID), nil
}
