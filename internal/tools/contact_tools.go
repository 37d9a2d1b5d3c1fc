package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/alphahumanxyz/courier/internal/messenger"
)

func (r *Registry) registerContactTools() {
	r.Register(&Tool{
		Name:        "list_contacts",
		Description: "List the user's contacts with names, usernames, and phone numbers.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleListContacts,
	})

	r.Register(&Tool{
		Name:        "get_contact",
		Description: "Get a single contact by user id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id"},
			},
			"required": []string{"user_id"},
		},
		Handler: r.handleGetContact,
	})

	r.Register(&Tool{
		Name:        "add_contact",
		Description: "Add a person to the contact list by phone number.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"phone":      map[string]any{"type": "string", "description": "Phone number in international format"},
				"first_name": map[string]any{"type": "string", "description": "First name"},
				"last_name":  map[string]any{"type": "string", "description": "Last name"},
			},
			"required": []string{"phone", "first_name"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Adding contact %v", args["first_name"])
		},
		Handler: r.handleAddContact,
	})

	r.Register(&Tool{
		Name:        "delete_contact",
		Description: "Remove a person from the contact list. Does not block them.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id"},
			},
			"required": []string{"user_id"},
		},
		Handler: r.handleDeleteContact,
	})

	r.Register(&Tool{
		Name:        "block_user",
		Description: "Block or unblock a user. Blocked users cannot message the current user.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id"},
				"blocked": map[string]any{"type": "boolean", "description": "true to block, false to unblock (default true)"},
			},
			"required": []string{"user_id"},
		},
		Summary: func(args map[string]any) string {
			return fmt.Sprintf("Blocking user %v", args["user_id"])
		},
		Handler: r.handleBlockUser,
	})

	r.Register(&Tool{
		Name:        "export_contact_vcard",
		Description: "Export a contact as a vCard 4.0 document suitable for address-book import.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_id": map[string]any{"type": "integer", "description": "Numeric user id"},
			},
			"required": []string{"user_id"},
		},
		Handler: r.handleExportContactVCard,
	})
}

func (r *Registry) handleListContacts(ctx context.Context, args map[string]any) (string, error) {
	contacts, err := r.api.ListContacts(ctx)
	if err != nil {
		return "", err
	}
	if len(contacts) == 0 {
		return "No contacts.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d contacts:\n", len(contacts))
	for _, c := range contacts {
		b.WriteString("- " + formatContact(c) + "\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Registry) handleGetContact(ctx context.Context, args map[string]any) (string, error) {
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	c, err := r.api.GetContact(ctx, userID)
	if err != nil {
		return "", err
	}
	return formatContact(*c), nil
}

func (r *Registry) handleAddContact(ctx context.Context, args map[string]any) (string, error) {
	phone, err := String(args, "phone")
	if err != nil {
		return "", err
	}
	firstName, err := String(args, "first_name")
	if err != nil {
		return "", err
	}
	lastName, err := OptionalString(args, "last_name", "")
	if err != nil {
		return "", err
	}
	c, err := r.api.AddContact(ctx, phone, firstName, lastName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added contact: %s", formatContact(*c)), nil
}

func (r *Registry) handleDeleteContact(ctx context.Context, args map[string]any) (string, error) {
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	if err := r.api.DeleteContact(ctx, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted contact %d.", userID), nil
}

func (r *Registry) handleBlockUser(ctx context.Context, args map[string]any) (string, error) {
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	blocked, err := OptionalBool(args, "blocked", true)
	if err != nil {
		return "", err
	}
	if err := r.api.SetUserBlocked(ctx, userID, blocked); err != nil {
		return "", err
	}
	if blocked {
		return fmt.Sprintf("Blocked user %d.", userID), nil
	}
	return fmt.Sprintf("Unblocked user %d.", userID), nil
}

func (r *Registry) handleExportContactVCard(ctx context.Context, args map[string]any) (string, error) {
	userID, err := UserID(args, "user_id")
	if err != nil {
		return "", err
	}
	c, err := r.api.GetContact(ctx, userID)
	if err != nil {
		return "", err
	}
	card, err := messenger.ExportVCard(*c)
	if err != nil {
		return "", err
	}
	return card, nil
}

func formatContact(c messenger.Contact) string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	s := fmt.Sprintf("%s (id %d)", name, c.UserID)
	if c.Username != "" {
		s += " @" + c.Username
	}
	if c.Phone != "" {
		s += " " + c.Phone
	}
	if c.Blocked {
		s += " [blocked]"
	}
	return s
}
