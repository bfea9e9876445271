// Package chatclient is a typed client for the chat API, plus the polling
// loop and open-chat bookkeeping a frontend needs on top of it.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIError is a non-2xx reply, decoded from the server's error envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Avatar   *string   `json:"avatar_url,omitempty"`
	IsOnline bool      `json:"is_online"`
}

type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type Message struct {
	ID        uuid.UUID     `json:"id"`
	SenderID  uuid.UUID     `json:"sender_id"`
	Content   string        `json:"content"`
	ImageURL  *string       `json:"image_url,omitempty"`
	Type      string        `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
	ReadBy    []ReadReceipt `json:"read_by"`
}

type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	Participants  []uuid.UUID `json:"participants"`
	Other         *User       `json:"other,omitempty"`
	Messages      []Message   `json:"messages"`
	LastMessage   string      `json:"last_message"`
	LastMessageAt time.Time   `json:"last_message_at"`
}

type ConversationSummary struct {
	ID            uuid.UUID `json:"id"`
	Other         User      `json:"other"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`
}

type GroupMember struct {
	User
	JoinedAt time.Time `json:"joined_at"`
	IsAdmin  bool      `json:"is_admin"`
}

type Group struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	AdminID       uuid.UUID     `json:"admin_id"`
	Members       []GroupMember `json:"members"`
	Messages      []Message     `json:"messages"`
	LastMessageAt time.Time     `json:"last_message_at"`
	CreatedAt     time.Time     `json:"created_at"`
}

type GroupSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	MemberCount   int       `json:"member_count"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`
}

type NotificationAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
	Value  string `json:"value"`
	Style  string `json:"style,omitempty"`
}

type Notification struct {
	ID        uuid.UUID            `json:"id"`
	Sender    *User                `json:"sender,omitempty"`
	Icon      string               `json:"icon"`
	Category  string               `json:"category"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  string               `json:"priority"`
	Link      string               `json:"link"`
	Actions   []NotificationAction `json:"actions"`
	Read      bool                 `json:"read"`
	Clicked   bool                 `json:"clicked"`
	CreatedAt time.Time            `json:"created_at"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// NotificationFeed is the composite list payload: the page of notifications
// together with the badge total and the per-category tab counts.
type NotificationFeed struct {
	Notifications  []Notification  `json:"notifications"`
	UnreadCount    int64           `json:"unreadCount"`
	CategoryCounts []CategoryCount `json:"categoryCounts"`
}

// Client talks to the chat API on behalf of one authenticated user.
type Client struct {
	baseURL    string
	token      string
	userID     uuid.UUID
	httpClient *http.Client
}

func New(baseURL, token string, userID uuid.UUID) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userID:     userID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// UserID returns the authenticated user this client acts as.
func (c *Client) UserID() uuid.UUID {
	return c.userID
}

func (c *Client) GetOrCreateConversation(ctx context.Context, otherID uuid.UUID) (*Conversation, error) {
	var conv Conversation
	path := fmt.Sprintf("/messages/%s/conversation/%s", c.userID, otherID)
	if err := c.do(ctx, http.MethodGet, path, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	path := fmt.Sprintf("/messages/%s/conversations", c.userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*Conversation, error) {
	var conv Conversation
	path := fmt.Sprintf("/messages/%s/send", conversationID)
	body := map[string]string{"content": content, "type": "text"}
	if err := c.do(ctx, http.MethodPost, path, body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) MarkConversationRead(ctx context.Context, conversationID uuid.UUID) error {
	path := fmt.Sprintf("/messages/%s/read/%s", conversationID, c.userID)
	return c.do(ctx, http.MethodPatch, path, nil, nil)
}

func (c *Client) CreateGroup(ctx context.Context, name, description string, memberIDs []uuid.UUID) (*Group, error) {
	ids := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		ids[i] = id.String()
	}
	body := map[string]any{"name": name, "description": description, "memberIds": ids}

	var group Group
	if err := c.do(ctx, http.MethodPost, "/groups/create", body, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *Client) GetGroup(ctx context.Context, groupID uuid.UUID) (*Group, error) {
	var group Group
	if err := c.do(ctx, http.MethodGet, "/groups/"+groupID.String(), nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]GroupSummary, error) {
	var out struct {
		Groups []GroupSummary `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups/user/"+c.userID.String(), nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

func (c *Client) SendGroupMessage(ctx context.Context, groupID uuid.UUID, content string) (*Group, error) {
	var group Group
	path := fmt.Sprintf("/groups/%s/send", groupID)
	body := map[string]string{"content": content, "type": "text"}
	if err := c.do(ctx, http.MethodPost, path, body, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *Client) MarkGroupRead(ctx context.Context, groupID uuid.UUID) error {
	path := fmt.Sprintf("/groups/%s/read/%s", groupID, c.userID)
	return c.do(ctx, http.MethodPatch, path, nil, nil)
}

func (c *Client) LeaveGroup(ctx context.Context, groupID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/leave", groupID), nil, nil)
}

func (c *Client) Notifications(ctx context.Context, category string) (*NotificationFeed, error) {
	path := "/notifications/" + c.userID.String()
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var feed NotificationFeed
	if err := c.do(ctx, http.MethodGet, path, nil, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

func (c *Client) UnreadNotificationCount(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	path := fmt.Sprintf("/notifications/%s/unread-count", c.userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) MarkNotificationClicked(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/notifications/%s/clicked", id), nil, nil)
}

func (c *Client) DismissNotification(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/notifications/%s/dismiss", id), nil, nil)
}

func (c *Client) ExecuteNotificationAction(ctx context.Context, id uuid.UUID, actionIndex int) error {
	body := map[string]any{"notificationId": id.String(), "actionIndex": actionIndex}
	return c.do(ctx, http.MethodPost, "/notifications/action", body, nil)
}

// SearchUsers queries the friend-search directory.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	path := "/users/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) OnlineFriends(ctx context.Context) ([]User, error) {
	return c.friends(ctx, "online-friends")
}

func (c *Client) AllFriends(ctx context.Context) ([]User, error) {
	return c.friends(ctx, "all-friends")
}

func (c *Client) friends(ctx context.Context, leaf string) ([]User, error) {
	var out struct {
		Friends []User `json:"friends"`
	}
	path := fmt.Sprintf("/users/%s/%s", c.userID, leaf)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Friends, nil
}

// SetOnline flips the caller's presence flag.
func (c *Client) SetOnline(ctx context.Context, online bool) error {
	path := fmt.Sprintf("/users/%s/online-status", c.userID)
	return c.do(ctx, http.MethodPatch, path, map[string]bool{"isOnline": online}, nil)
}

// SetOnlineBeacon is the page-unload variant of SetOnline: a POST with a
// short deadline whose response is ignored, matching what a browser beacon
// can deliver while the page is being torn down.
func (c *Client) SetOnlineBeacon(online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	path := fmt.Sprintf("/users/%s/online-status", c.userID)
	_ = c.do(ctx, http.MethodPost, path, map[string]bool{"isOnline": online}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Error == "" {
			envelope.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
