package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alphahumanxyz/courier/internal/httpkit"
)

// Client is the HTTP implementation of [API]. Every method is a thin
// POST to /api/<method> with a JSON body; the interesting behavior
// lives in the callers, not here.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a messaging API client.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		logger:  logger,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
	}
}

// apiEnvelope is the messaging API's uniform response shape.
type apiEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *apiError       `json:"error,omitempty"`
}

// apiError is a structured failure from the messaging API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *apiError) Error() string {
	return fmt.Sprintf("messenger api error %d: %s", e.Code, e.Message)
}

// call POSTs params to /api/<method> and decodes the result into out
// (skipped when out is nil).
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s: marshal params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer httpkit.DrainAndClose(resp.Body, 1<<20)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 4096))
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if !env.OK {
		if env.Error != nil {
			return fmt.Errorf("%s: %w", method, env.Error)
		}
		return fmt.Errorf("%s: request failed", method)
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": chatID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) ListChats(ctx context.Context, limit int) ([]Chat, error) {
	var chats []Chat
	if err := c.call(ctx, "listChats", map[string]any{"limit": limit}, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *Client) CreateGroup(ctx context.Context, title string, memberIDs []int64) (*Chat, error) {
	var chat Chat
	err := c.call(ctx, "createGroup", map[string]any{"title": title, "member_ids": memberIDs}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) SetChatTitle(ctx context.Context, chatID int64, title string) error {
	return c.call(ctx, "setChatTitle", map[string]any{"chat_id": chatID, "title": title}, nil)
}

func (c *Client) LeaveChat(ctx context.Context, chatID int64) error {
	return c.call(ctx, "leaveChat", map[string]any{"chat_id": chatID}, nil)
}

func (c *Client) SetChatPinned(ctx context.Context, chatID int64, pinned bool) error {
	return c.call(ctx, "setChatPinned", map[string]any{"chat_id": chatID, "pinned": pinned}, nil)
}

func (c *Client) SetChatArchived(ctx context.Context, chatID int64, archived bool) error {
	return c.call(ctx, "setChatArchived", map[string]any{"chat_id": chatID, "archived": archived}, nil)
}

func (c *Client) SetChatMuted(ctx context.Context, chatID int64, muted bool) error {
	return c.call(ctx, "setChatMuted", map[string]any{"chat_id": chatID, "muted": muted}, nil)
}

func (c *Client) MarkChatRead(ctx context.Context, chatID int64) error {
	return c.call(ctx, "markChatRead", map[string]any{"chat_id": chatID}, nil)
}

func (c *Client) GetMessages(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	var msgs []Message
	err := c.call(ctx, "getMessages", map[string]any{"chat_id": chatID, "limit": limit}, &msgs)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]Message, error) {
	var msgs []Message
	err := c.call(ctx, "searchMessages", map[string]any{"chat_id": chatID, "query": query, "limit": limit}, &msgs)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage sends text to a chat. With opts.Markdown set, the text
// is rendered to formatted HTML locally and sent with parse_mode html.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (*Message, error) {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if opts.Markdown {
		rendered, err := RenderMarkdown(text)
		if err != nil {
			return nil, fmt.Errorf("sendMessage: render markdown: %w", err)
		}
		params["text"] = rendered
		params["parse_mode"] = "html"
	}
	if opts.ReplyTo != 0 {
		params["reply_to"] = opts.ReplyTo
	}
	if opts.Silent {
		params["silent"] = true
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string) (*Message, error) {
	var msg Message
	err := c.call(ctx, "editMessage", map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID}, nil)
}

func (c *Client) ForwardMessage(ctx context.Context, fromChatID, messageID, toChatID int64) (*Message, error) {
	var msg Message
	err := c.call(ctx, "forwardMessage", map[string]any{"from_chat_id": fromChatID, "message_id": messageID, "to_chat_id": toChatID}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SetMessagePinned(ctx context.Context, chatID, messageID int64, pinned bool) error {
	return c.call(ctx, "setMessagePinned", map[string]any{"chat_id": chatID, "message_id": messageID, "pinned": pinned}, nil)
}

func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := c.call(ctx, "listContacts", map[string]any{}, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (c *Client) GetContact(ctx context.Context, userID int64) (*Contact, error) {
	var contact Contact
	if err := c.call(ctx, "getContact", map[string]any{"user_id": userID}, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) AddContact(ctx context.Context, phone, firstName, lastName string) (*Contact, error) {
	var contact Contact
	err := c.call(ctx, "addContact", map[string]any{"phone": phone, "first_name": firstName, "last_name": lastName}, &contact)
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) DeleteContact(ctx context.Context, userID int64) error {
	return c.call(ctx, "deleteContact", map[string]any{"user_id": userID}, nil)
}

func (c *Client) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	return c.call(ctx, "setUserBlocked", map[string]any{"user_id": userID, "blocked": blocked}, nil)
}

func (c *Client) ResolveUsername(ctx context.Context, username string) (int64, error) {
	var result struct {
		UserID int64 `json:"user_id"`
	}
	if err := c.call(ctx, "resolveUsername", map[string]any{"username": username}, &result); err != nil {
		return 0, err
	}
	return result.UserID, nil
}

func (c *Client) GetMe(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.call(ctx, "getMe", map[string]any{}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, firstName, lastName, bio string) (*Profile, error) {
	var p Profile
	err := c.call(ctx, "updateProfile", map[string]any{"first_name": firstName, "last_name": lastName, "bio": bio}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SetUsername(ctx context.Context, username string) error {
	return c.call(ctx, "setUsername", map[string]any{"username": username}, nil)
}

func (c *Client) GetPrivacy(ctx context.Context, setting PrivacySetting) (string, error) {
	var result struct {
		Rule string `json:"rule"`
	}
	if err := c.call(ctx, "getPrivacy", map[string]any{"setting": setting}, &result); err != nil {
		return "", err
	}
	return result.Rule, nil
}

func (c *Client) SetPrivacy(ctx context.Context, setting PrivacySetting, rule string) error {
	return c.call(ctx, "setPrivacy", map[string]any{"setting": setting, "rule": rule}, nil)
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, url, caption string) (*Message, error) {
	var msg Message
	err := c.call(ctx, "sendPhoto", map[string]any{"chat_id": chatID, "url": url, "caption": caption}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, url, caption string) (*Message, error) {
	var msg Message
	err := c.call(ctx, "sendDocument", map[string]any{"chat_id": chatID, "url": url, "caption": caption}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendPoll(ctx context.Context, chatID int64, question string, options []string, anonymous bool) (*Message, error) {
	var msg Message
	err := c.call(ctx, "sendPoll", map[string]any{
		"chat_id":   chatID,
		"question":  question,
		"options":   options,
		"anonymous": anonymous,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) StopPoll(ctx context.Context, chatID, messageID int64) (*Poll, error) {
	var poll Poll
	err := c.call(ctx, "stopPoll", map[string]any{"chat_id": chatID, "message_id": messageID}, &poll)
	if err != nil {
		return nil, err
	}
	return &poll, nil
}

func (c *Client) GetMembers(ctx context.Context, chatID int64, limit int) ([]Member, error) {
	var members []Member
	err := c.call(ctx, "getMembers", map[string]any{"chat_id": chatID, "limit": limit}, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) BanMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banMember", map[string]any{"chat_id": chatID, "user_id": userID}, nil)
}

func (c *Client) UnbanMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "unbanMember", map[string]any{"chat_id": chatID, "user_id": userID}, nil)
}

func (c *Client) MuteMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	return c.call(ctx, "muteMember", map[string]any{"chat_id": chatID, "user_id": userID, "until": until.Unix()}, nil)
}

func (c *Client) PromoteMember(ctx context.Context, chatID, userID int64, title string) error {
	return c.call(ctx, "promoteMember", map[string]any{"chat_id": chatID, "user_id": userID, "title": title}, nil)
}

// compile-time interface check
var _ API = (*Client)(nil)
