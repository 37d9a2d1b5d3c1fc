package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (r *Registry) registerAdminTools() {
	r.Register(&Tool{
		Name:        "get_members",
		Description: "List the members of a group chat with their roles.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of members to return (default 50, max 200)",
				},
			},
			"required": []string{"chat_id"},
		},
		Handler: r.handleGetMembers,
	})

	r.Register(&Tool{
		Name:        "ban_member",
		Description: "Ban a user from a group chat. Requires admin rights in the chat.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id to ban"},
			},
			"required": []string{"chat_id", "user_id"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Banning user %v from %v", args["user_id"], args["chat_id"])
		},
		Handler: r.handleBanMember,
	})

	r.Register(&Tool{
		Name:        "unban_member",
		Description: "Lift a ban so the user may rejoin the group chat.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id to unban"},
			},
			"required": []string{"chat_id", "user_id"},
		},
		Handler: r.handleUnbanMember,
	})

	r.Register(&Tool{
		Name:        "mute_member",
		Description: "Temporarily prevent a member from sending messages in a group chat.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id to mute"},
				"minutes": map[string]any{
					"type":        "integer",
					"description": "Mute duration in minutes (default 60, max 10080)",
				},
			},
			"required": []string{"chat_id", "user_id"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Muting user %v in %v", args["user_id"], args["chat_id"])
		},
		Handler: r.handleMuteMember,
	})

	r.Register(&Tool{
		Name:        "promote_member",
		Description: "Promote a member to admin in a group chat, with an optional custom title.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id to promote"},
				"title":   map[string]any{"type": "string", "description": "Custom admin title"},
			},
			"required": []string{"chat_id", "user_id"},
		},
		Handler: r.handlePromoteMember,
	})
}

func (r *Registry) handleGetMembers(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	limit, err := OptionalInt(args, "limit", 50, 1, 200)
	if err != nil {
		return "", err
	}
	members, err := r.api.GetMembers(ctx, chatID, int(limit))
	if err != nil {
		return "", err
	}
	if len(members) == 0 {
		return "No members found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d members:\n", len(members))
	for _, m := range members {
		fmt.Fprintf(&b, "- [%d] %s (%s)", m.UserID, m.Name, m.Role)
		if m.Banned {
			b.WriteString(" [banned]")
		}
		if m.MutedUntil != nil && m.MutedUntil.After(time.Now()) {
			fmt.Fprintf(&b, " [muted until %s]", m.MutedUntil.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) handleBanMember(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	if err := r.api.BanMember(ctx, chatID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Banned user %d from chat %d.", userID, chatID), nil
}

func (r *Registry) handleUnbanMember(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	if err := r.api.UnbanMember(ctx, chatID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Unbanned user %d in chat %d.", userID, chatID), nil
}

func (r *Registry) handleMuteMember(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	minutes, err := OptionalInt(args, "minutes", 60, 1, 10080)
	if err != nil {
		return "", err
	}
	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	if err := r.api.MuteMember(ctx, chatID, userID, until); err != nil {
		return "", err
	}
	return fmt.Sprintf("Muted user %d in chat %d for %d minutes.", userID, chatID, minutes), nil
}

func (r *Registry) handlePromoteMember(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	title, err := OptionalString(args, "title", "")
	if err != nil {
		return "", err
	}
	if err := r.api.PromoteMember(ctx, chatID, userID, title); err != nil {
		return "", err
	}
	if title != "" {
		return fmt.Sprintf("Promoted user %d in chat %d with title %q.", userID, chatID, title), nil
	}
	return fmt.Sprintf("Promoted user %d in chat %d.", userID, chatID), nil
}
