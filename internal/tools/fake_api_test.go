package tools

import (
	"context"
	"errors"
	"time"

	"github.com/alphahumanxyz/courier/internal/messenger"
)

// fakeAPI is a scripted messenger.API. Tests set only the function
// fields a handler should reach; an unscripted call fails the
// invocation with a distinctive error.
type fakeAPI struct {
	getChat         func(ctx context.Context, chatID int64) (*messenger.Chat, error)
	listChats       func(ctx context.Context, limit int) ([]messenger.Chat, error)
	createGroup     func(ctx context.Context, title string, memberIDs []int64) (*messenger.Chat, error)
	setChatTitle    func(ctx context.Context, chatID int64, title string) error
	sendMessage     func(ctx context.Context, chatID int64, text string, opts messenger.SendOptions) (*messenger.Message, error)
	deleteMessage   func(ctx context.Context, chatID, messageID int64) error
	getMessages     func(ctx context.Context, chatID int64, limit int) ([]messenger.Message, error)
	listContacts    func(ctx context.Context) ([]messenger.Contact, error)
	getContact      func(ctx context.Context, userID int64) (*messenger.Contact, error)
	resolveUsername func(ctx context.Context, username string) (int64, error)
	setPrivacy      func(ctx context.Context, setting messenger.PrivacySetting, rule string) error
	sendPoll        func(ctx context.Context, chatID int64, question string, options []string, anonymous bool) (*messenger.Message, error)
	banMember       func(ctx context.Context, chatID, userID int64) error
	muteMember      func(ctx context.Context, chatID, userID int64, until time.Time) error
}

var errUnscripted = errors.New("unscripted fake API call")

func (f *fakeAPI) GetChat(ctx context.Context, chatID int64) (*messenger.Chat, error) {
	if f.getChat == nil {
		return nil, errUnscripted
	}
	return f.getChat(ctx, chatID)
}

func (f *fakeAPI) ListChats(ctx context.Context, limit int) ([]messenger.Chat, error) {
	if f.listChats == nil {
		return nil, errUnscripted
	}
	return f.listChats(ctx, limit)
}

func (f *fakeAPI) CreateGroup(ctx context.Context, title string, memberIDs []int64) (*messenger.Chat, error) {
	if f.createGroup == nil {
		return nil, errUnscripted
	}
	return f.createGroup(ctx, title, memberIDs)
}

func (f *fakeAPI) SetChatTitle(ctx context.Context, chatID int64, title string) error {
	if f.setChatTitle == nil {
		return errUnscripted
	}
	return f.setChatTitle(ctx, chatID, title)
}

func (f *fakeAPI) LeaveChat(ctx context.Context, chatID int64) error      { return errUnscripted }
func (f *fakeAPI) SetChatPinned(ctx context.Context, chatID int64, pinned bool) error {
	return errUnscripted
}
func (f *fakeAPI) SetChatArchived(ctx context.Context, chatID int64, archived bool) error {
	return errUnscripted
}
func (f *fakeAPI) SetChatMuted(ctx context.Context, chatID int64, muted bool) error {
	return errUnscripted
}
func (f *fakeAPI) MarkChatRead(ctx context.Context, chatID int64) error { return errUnscripted }

func (f *fakeAPI) GetMessages(ctx context.Context, chatID int64, limit int) ([]messenger.Message, error) {
	if f.getMessages == nil {
		return nil, errUnscripted
	}
	return f.getMessages(ctx, chatID, limit)
}

func (f *fakeAPI) SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]messenger.Message, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID int64, text string, opts messenger.SendOptions) (*messenger.Message, error) {
	if f.sendMessage == nil {
		return nil, errUnscripted
	}
	return f.sendMessage(ctx, chatID, text, opts)
}

func (f *fakeAPI) EditMessage(ctx context.Context, chatID, messageID int64, text string) (*messenger.Message, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	if f.deleteMessage == nil {
		return errUnscripted
	}
	return f.deleteMessage(ctx, chatID, messageID)
}

func (f *fakeAPI) ForwardMessage(ctx context.Context, fromChatID, messageID, toChatID int64) (*messenger.Message, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) SetMessagePinned(ctx context.Context, chatID, messageID int64, pinned bool) error {
	return errUnscripted
}

func (f *fakeAPI) ListContacts(ctx context.Context) ([]messenger.Contact, error) {
	if f.listContacts == nil {
		return nil, errUnscripted
	}
	return f.listContacts(ctx)
}

func (f *fakeAPI) GetContact(ctx context.Context, userID int64) (*messenger.Contact, error) {
	if f.getContact == nil {
		return nil, errUnscripted
	}
	return f.getContact(ctx, userID)
}

func (f *fakeAPI) AddContact(ctx context.Context, phone, firstName, lastName string) (*messenger.Contact, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) DeleteContact(ctx context.Context, userID int64) error { return errUnscripted }

func (f *fakeAPI) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	return errUnscripted
}

func (f *fakeAPI) ResolveUsername(ctx context.Context, username string) (int64, error) {
	if f.resolveUsername == nil {
		return 0, errUnscripted
	}
	return f.resolveUsername(ctx, username)
}

func (f *fakeAPI) GetMe(ctx context.Context) (*messenger.Profile, error) { return nil, errUnscripted }

func (f *fakeAPI) UpdateProfile(ctx context.Context, firstName, lastName, bio string) (*messenger.Profile, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) SetUsername(ctx context.Context, username string) error { return errUnscripted }

func (f *fakeAPI) GetPrivacy(ctx context.Context, setting messenger.PrivacySetting) (string, error) {
	return "", errUnscripted
}

func (f *fakeAPI) SetPrivacy(ctx context.Context, setting messenger.PrivacySetting, rule string) error {
	if f.setPrivacy == nil {
		return errUnscripted
	}
	return f.setPrivacy(ctx, setting, rule)
}

func (f *fakeAPI) SendPhoto(ctx context.Context, chatID int64, url, caption string) (*messenger.Message, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) SendDocument(ctx context.Context, chatID int64, url, caption string) (*messenger.Message, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) SendPoll(ctx context.Context, chatID int64, question string, options []string, anonymous bool) (*messenger.Message, error) {
	if f.sendPoll == nil {
		return nil, errUnscripted
	}
	return f.sendPoll(ctx, chatID, question, options, anonymous)
}

func (f *fakeAPI) StopPoll(ctx context.Context, chatID, messageID int64) (*messenger.Poll, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) GetMembers(ctx context.Context, chatID int64, limit int) ([]messenger.Member, error) {
	return nil, errUnscripted
}

func (f *fakeAPI) BanMember(ctx context.Context, chatID, userID int64) error {
	if f.banMember == nil {
		return errUnscripted
	}
	return f.banMember(ctx, chatID, userID)
}

func (f *fakeAPI) UnbanMember(ctx context.Context, chatID, userID int64) error { return errUnscripted }

func (f *fakeAPI) MuteMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	if f.muteMember == nil {
		return errUnscripted
	}
	return f.muteMember(ctx, chatID, userID, until)
}

func (f *fakeAPI) PromoteMember(ctx context.Context, chatID, userID int64, title string) error {
	return errUnscripted
}

var _ messenger.API = (*fakeAPI)(nil)
