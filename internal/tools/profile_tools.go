package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/alphahumanxyz/courier/internal/messenger"
)

func (r *Registry) registerProfileTools() {
	r.Register(&Tool{
		Name:        "get_me",
		Description: "Get the current user's own profile: name, username, and bio.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleGetMe,
	})

	r.Register(&Tool{
		Name:        "update_profile",
		Description: "Update the current user's profile. Only provided fields change; empty fields are left untouched.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"first_name": map[string]any{"type": "string", "description": "New first name"},
				"last_name":  map[string]any{"type": "string", "description": "New last name"},
				"bio":        map[string]any{"type": "string", "description": "New bio text"},
			},
		},
		Handler: r.handleUpdateProfile,
	})

	r.Register(&Tool{
		Name:        "set_username",
		Description: "Change the current user's public @username.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"username": map[string]any{"type": "string", "description": "New username, with or without leading @"},
			},
			"required": []string{"username"},
		},
		Handler: r.handleSetUsername,
	})

	r.Register(&Tool{
		Name:        "resolve_username",
		Description: "Resolve a public @username to its numeric id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"username": map[string]any{"type": "string", "description": "Username, with or without leading @"},
			},
			"required": []string{"username"},
		},
		Handler: r.handleResolveUsername,
	})

	r.Register(&Tool{
		Name:        "get_privacy",
		Description: "Get the current rule for a privacy setting.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"setting": map[string]any{
					"type":        "string",
					"enum":        []string{"last_seen", "phone_number", "profile_photo", "chat_invites"},
					"description": "Privacy setting category",
				},
			},
			"required": []string{"setting"},
		},
		Handler: r.handleGetPrivacy,
	})

	r.Register(&Tool{
		Name:        "set_privacy",
		Description: "Set who may see a profile attribute or invite the user to chats.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"setting": map[string]any{
					"type":        "string",
					"enum":        []string{"last_seen", "phone_number", "profile_photo", "chat_invites"},
					"description": "Privacy setting category",
				},
				"rule": map[string]any{
					"type":        "string",
					"enum":        []string{"everybody", "contacts", "nobody"},
					"description": "Who the setting applies to",
				},
			},
			"required": []string{"setting", "rule"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Setting %v privacy to %v", args["setting"], args["rule"])
		},
		Handler: r.handleSetPrivacy,
	})
}

func (r *Registry) handleGetMe(ctx context.Context, args map[string]any) (string, error) {
	p, err := r.api.GetMe(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (id %d)\n", strings.TrimSpace(p.FirstName+" "+p.LastName), p.UserID)
	if p.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", p.Username)
	}
	if p.Bio != "" {
		fmt.Fprintf(&b, "Bio: %s\n", p.Bio)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) handleUpdateProfile(ctx context.Context, args map[string]any) (string, error) {
	firstName, err := OptionalString(args, "first_name", "")
	if err != nil {
		return "", err
	}
	lastName, err := OptionalString(args, "last_name", "")
	if err != nil {
		return "", err
	}
	bio, err := OptionalString(args, "bio", "")
	if err != nil {
		return "", err
	}
	if firstName == "" && lastName == "" && bio == "" {
		return "", invalidf("at least one of first_name, last_name, bio must be provided")
	}
	p, err := r.api.UpdateProfile(ctx, firstName, lastName, bio)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Profile updated: %s.", strings.TrimSpace(p.FirstName+" "+p.LastName)), nil
}

func (r *Registry) handleSetUsername(ctx context.Context, args map[string]any) (string, error) {
	raw, err := String(args, "username")
	if err != nil {
		return "", err
	}
	name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if !usernameRe.MatchString(name) {
		return "", invalidf("argument %q is not a valid username: %q", "username", raw)
	}
	if err := r.api.SetUsername(ctx, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Username changed to @%s.", name), nil
}

func (r *Registry) handleResolveUsername(ctx context.Context, args map[string]any) (string, error) {
	raw, err := String(args, "username")
	if err != nil {
		return "", err
	}
	name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if !usernameRe.MatchString(name) {
		return "", invalidf("argument %q is not a valid username: %q", "username", raw)
	}
	id, err := r.api.ResolveUsername(ctx, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("@%s is id %d.", name, id), nil
}

func (r *Registry) handleGetPrivacy(ctx context.Context, args map[string]any) (string, error) {
	setting, err := Enum(args, "setting", "last_seen", "phone_number", "profile_photo", "chat_invites")
	if err != nil {
		return "", err
	}
	rule, err := r.api.GetPrivacy(ctx, messenger.PrivacySetting(setting))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is visible to: %s.", setting, rule), nil
}

func (r *Registry) handleSetPrivacy(ctx context.Context, args map[string]any) (string, error) {
	setting, err := Enum(args, "setting", "last_seen", "phone_number", "profile_photo", "chat_invites")
	if err != nil {
		return "", err
	}
	rule, err := Enum(args, "rule", "everybody", "contacts", "nobody")
	if err != nil {
		return "", err
	}
	if err := r.api.SetPrivacy(ctx, messenger.PrivacySetting(setting), rule); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s is now visible to: %s.", setting, rule), nil
}
