package messenger

import (
	"context"
	"time"
)

// API is the surface of the messaging backend consumed by tool
// handlers. The production implementation is [*Client]; tests use a
// scripted fake.
type API interface {
	// Chats.
	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	ListChats(ctx context.Context, limit int) ([]Chat, error)
	CreateGroup(ctx context.Context, title string, memberIDs []int64) (*Chat, error)
	SetChatTitle(ctx context.Context, chatID int64, title string) error
	LeaveChat(ctx context.Context, chatID int64) error
	SetChatPinned(ctx context.Context, chatID int64, pinned bool) error
	SetChatArchived(ctx context.Context, chatID int64, archived bool) error
	SetChatMuted(ctx context.Context, chatID int64, muted bool) error
	MarkChatRead(ctx context.Context, chatID int64) error

	// Messages.
	GetMessages(ctx context.Context, chatID int64, limit int) ([]Message, error)
	SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]Message, error)
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (*Message, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string) (*Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	ForwardMessage(ctx context.Context, fromChatID, messageID, toChatID int64) (*Message, error)
	SetMessagePinned(ctx context.Context, chatID, messageID int64, pinned bool) error

	// Contacts.
	ListContacts(ctx context.Context) ([]Contact, error)
	GetContact(ctx context.Context, userID int64) (*Contact, error)
	AddContact(ctx context.Context, phone, firstName, lastName string) (*Contact, error)
	DeleteContact(ctx context.Context, userID int64) error
	SetUserBlocked(ctx context.Context, userID int64, blocked bool) error
	ResolveUsername(ctx context.Context, username string) (int64, error)

	// Profile.
	GetMe(ctx context.Context) (*Profile, error)
	UpdateProfile(ctx context.Context, firstName, lastName, bio string) (*Profile, error)
	SetUsername(ctx context.Context, username string) error

	// Privacy.
	GetPrivacy(ctx context.Context, setting PrivacySetting) (string, error)
	SetPrivacy(ctx context.Context, setting PrivacySetting, rule string) error

	// Media.
	SendPhoto(ctx context.Context, chatID int64, url, caption string) (*Message, error)
	SendDocument(ctx context.Context, chatID int64, url, caption string) (*Message, error)

	// Polls.
	SendPoll(ctx context.Context, chatID int64, question string, options []string, anonymous bool) (*Message, error)
	StopPoll(ctx context.Context, chatID, messageID int64) (*Poll, error)

	// Group administration.
	GetMembers(ctx context.Context, chatID int64, limit int) ([]Member, error)
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	MuteMember(ctx context.Context, chatID, userID int64, until time.Time) error
	PromoteMember(ctx context.Context, chatID, userID int64, title string) error
}
