// Package messenger provides the client for the Telegram-style
// messaging API that tool handlers call into. The agent session
// subsystem treats this API as an external collaborator: handlers
// translate validated tool arguments into one or more calls here and
// format the results as text.
package messenger

import "time"

// Chat kinds.
const (
	ChatPrivate = "private"
	ChatGroup   = "group"
	ChatChannel = "channel"
)

// Chat is a conversation the current user participates in.
type Chat struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"` // private, group, channel
	Title       string `json:"title"`
	Username    string `json:"username,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
	Pinned      bool   `json:"pinned"`
	Archived    bool   `json:"archived"`
	Muted       bool   `json:"muted"`
	UnreadCount int    `json:"unread_count"`
}

// Message is one message within a chat.
type Message struct {
	ID       int64     `json:"id"`
	ChatID   int64     `json:"chat_id"`
	SenderID int64     `json:"sender_id"`
	Sender   string    `json:"sender,omitempty"` // display name
	Text     string    `json:"text"`
	Kind     string    `json:"kind,omitempty"` // text, photo, document, poll, ...
	Pinned   bool      `json:"pinned"`
	Edited   bool      `json:"edited"`
	SentAt   time.Time `json:"sent_at"`
}

// Contact is an entry in the current user's contact list.
type Contact struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Blocked   bool   `json:"blocked"`
}

// Profile is the current user's own profile.
type Profile struct {
	UserID    int64  `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// PrivacySetting names a privacy rule category.
type PrivacySetting string

// Privacy setting categories.
const (
	PrivacyLastSeen    PrivacySetting = "last_seen"
	PrivacyPhoneNumber PrivacySetting = "phone_number"
	PrivacyPhoto       PrivacySetting = "profile_photo"
	PrivacyInvites     PrivacySetting = "chat_invites"
)

// Privacy rule values.
const (
	RuleEverybody = "everybody"
	RuleContacts  = "contacts"
	RuleNobody    = "nobody"
)

// Poll is a poll attached to a message.
type Poll struct {
	MessageID  int64        `json:"message_id"`
	Question   string       `json:"question"`
	Options    []PollOption `json:"options"`
	Anonymous  bool         `json:"anonymous"`
	Closed     bool         `json:"closed"`
	TotalVotes int          `json:"total_votes"`
}

// PollOption is one answer in a poll.
type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// SendOptions tunes an outbound message.
type SendOptions struct {
	// Markdown renders the text as markdown into formatted HTML
	// before sending.
	Markdown bool
	// ReplyTo threads the message under an existing one (0 = none).
	ReplyTo int64
	// Silent delivers without a notification sound.
	Silent bool
}

// Member is a user's standing within a group chat.
type Member struct {
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	Role       string     `json:"role"` // member, admin, owner
	MutedUntil *time.Time `json:"muted_until,omitempty"`
	Banned     bool       `json:"banned"`
}
