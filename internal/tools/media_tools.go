package tools

import (
	"context"
	"fmt"
	"net/url"
)

func (r *Registry) registerMediaTools() {
	r.Register(&Tool{
		Name:        "send_photo",
		Description: "Send a photo by URL to a chat, with an optional caption.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"url":     map[string]any{"type": "string", "description": "HTTP(S) URL of the image"},
				"caption": map[string]any{"type": "string", "description": "Caption text"},
			},
			"required": []string{"chat_id", "url"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Sending a photo to %v", args["chat_id"])
		},
		Handler: r.handleSendPhoto,
	})

	r.Register(&Tool{
		Name:        "send_document",
		Description: "Send a document/file by URL to a chat, with an optional caption.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"chat_id": map[string]any{"type": "string", "description": "Chat id or @username"},
				"url":     map[string]any{"type": "string", "description": "HTTP(S) URL of the file"},
				"caption": map[string]any{"type": "string", "description": "Caption text"},
			},
			"required": []string{"chat_id", "url"},
		},
		Handler: r.handleSendDocument,
	})
}

// mediaURL validates that a media argument is an absolute http(s) URL.
func mediaURL(args map[string]any) (string, error) {
	raw, err := String(args, "url")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalidf("argument %q must be an absolute http(s) URL, got %q", "url", raw)
	}
	return raw, nil
}

func (r *Registry) handleSendPhoto(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	u, err := mediaURL(args)
	if err != nil {
		return "", err
	}
	caption, err := OptionalString(args, "caption", "")
	if err != nil {
		return "", err
	}
	msg, err := r.api.SendPhoto(ctx, chatID, u, caption)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent photo as message %d to chat %d.", msg.ID, chatID), nil
}

func (r *Registry) handleSendDocument(ctx context.Context, args map[string]any) (string, error) {
	chatID, err := r.resolveChat(ctx, args, "chat_id")
	if err != nil {
		return "", err
	}
	u, err := mediaURL(args)
	if err != nil {
		return "", err
	}
	caption, err := OptionalString(args, "caption", "")
	if err != nil {
		return "", err
	}
	msg, err := r.api.SendDocument(ctx, chatID, u, caption)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sent document as message %d to chat %d.", msg.ID, chatID), nil
}
