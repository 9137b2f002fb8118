// Package gatewaytest provides an in-memory guild implementing gateway.Gateway for tests.
package gatewaytest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
)

// Operation names used for call recording and failure injection.
const (
	OpGuildName         = "GuildName"
	OpGetBans           = "GetBans"
	OpGetBan            = "GetBan"
	OpBan               = "Ban"
	OpUnban             = "Unban"
	OpGetUser           = "GetUser"
	OpGetMember         = "GetMember"
	OpGetRoles          = "GetRoles"
	OpAddRole           = "AddRole"
	OpGetChannel        = "GetChannel"
	OpSendMessage       = "SendMessage"
	OpGetMessage        = "GetMessage"
	OpEditMessage       = "EditMessage"
	OpDeleteMessage     = "DeleteMessage"
	OpSendDirectMessage = "SendDirectMessage"
)

// Message is a message held by the fake guild.
type Message struct {
	ID        snowflake.ID
	ChannelID snowflake.ID
	Create    discord.MessageCreate
	Edits     []discord.MessageUpdate
}

// Embeds returns the embeds currently displayed by the message.
func (m *Message) Embeds() []discord.Embed {
	for i := len(m.Edits) - 1; i >= 0; i-- {
		if m.Edits[i].Embeds != nil {
			return *m.Edits[i].Embeds
		}
	}
	return m.Create.Embeds
}

// DirectMessage is a DM delivered through the fake guild.
type DirectMessage struct {
	UserID  snowflake.ID
	Message discord.MessageCreate
}

// Call records a single gateway invocation.
type Call struct {
	Op     string
	UserID snowflake.ID
	Reason string
}

// Gateway is an in-memory guild. Fields may be set directly before the gateway is shared.
type Gateway struct {
	Guild    snowflake.ID
	Self     snowflake.ID
	Name     string
	Users    map[snowflake.ID]discord.User
	Members  map[snowflake.ID]discord.Member
	Roles    []discord.Role
	Channels map[snowflake.ID]bool

	mu       sync.Mutex
	bans     []discord.Ban
	messages map[snowflake.ID]*Message
	dms      []DirectMessage
	calls    []Call
	failures map[string]error
	nextID   snowflake.ID
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates an empty guild.
func New(guildID, selfID snowflake.ID) *Gateway {
	return &Gateway{
		Guild:    guildID,
		Self:     selfID,
		Name:     "Test Guild",
		Users:    make(map[snowflake.ID]discord.User),
		Members:  make(map[snowflake.ID]discord.Member),
		Channels: make(map[snowflake.ID]bool),
		messages: make(map[snowflake.ID]*Message),
		failures: make(map[string]error),
		nextID:   1_000_000,
	}
}

// AddUser registers a platform user.
func (g *Gateway) AddUser(user discord.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Users[user.ID] = user
}

// AddMember registers a guild member and its user.
func (g *Gateway) AddMember(member discord.Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Users[member.User.ID] = member.User
	g.Members[member.User.ID] = member
}

// AddBan seeds an existing ban.
func (g *Gateway) AddBan(user discord.User, reason *string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Users[user.ID] = user
	g.bans = append(g.bans, discord.Ban{User: user, Reason: reason})
}

// Fail makes every subsequent call to op return err. A nil err clears the failure.
func (g *Gateway) Fail(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = err
}

// RemoveMessage deletes a message behind the bot's back.
func (g *Gateway) RemoveMessage(messageID snowflake.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.messages, messageID)
}

// Bans returns a copy of the current ban set.
func (g *Gateway) Bans() []discord.Ban {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.bans)
}

// Message returns a message by ID.
func (g *Gateway) Message(messageID snowflake.ID) (*Message, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	msg, ok := g.messages[messageID]
	return msg, ok
}

// ChannelMessages returns the messages of a channel in creation order.
func (g *Gateway) ChannelMessages(channelID snowflake.ID) []*Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	var result []*Message
	for _, msg := range g.messages {
		if msg.ChannelID == channelID {
			result = append(result, msg)
		}
	}
	slices.SortFunc(result, func(a, b *Message) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// DirectMessages returns every DM delivered so far.
func (g *Gateway) DirectMessages() []DirectMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.dms)
}

// Calls returns the recorded invocations.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallCount returns how many times op was invoked.
func (g *Gateway) CallCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0
	for _, call := range g.calls {
		if call.Op == op {
			count++
		}
	}
	return count
}

// record must be called with the lock held.
func (g *Gateway) record(op string, userID snowflake.ID, reason string) error {
	g.calls = append(g.calls, Call{Op: op, UserID: userID, Reason: reason})
	return g.failures[op]
}

func (g *Gateway) GuildID() snowflake.ID { return g.Guild }

func (g *Gateway) SelfID() snowflake.ID { return g.Self }

func (g *Gateway) GuildName(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGuildName, 0, ""); err != nil {
		return "", err
	}
	return g.Name, nil
}

func (g *Gateway) GetBans(_ context.Context) ([]discord.Ban, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetBans, 0, ""); err != nil {
		return nil, err
	}
	return slices.Clone(g.bans), nil
}

func (g *Gateway) GetBan(_ context.Context, userID snowflake.ID) (*discord.Ban, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetBan, userID, ""); err != nil {
		return nil, err
	}
	for _, ban := range g.bans {
		if ban.User.ID == userID {
			return &ban, nil
		}
	}
	return nil, fmt.Errorf("%w: ban %s", gateway.ErrNotFound, userID)
}

func (g *Gateway) Ban(_ context.Context, userID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpBan, userID, reason); err != nil {
		return err
	}
	user, ok := g.Users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", gateway.ErrNotFound, userID)
	}
	g.bans = append(g.bans, discord.Ban{User: user, Reason: &reason})
	delete(g.Members, userID)
	return nil
}

func (g *Gateway) Unban(_ context.Context, userID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpUnban, userID, reason); err != nil {
		return err
	}
	for i, ban := range g.bans {
		if ban.User.ID == userID {
			g.bans = slices.Delete(g.bans, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: ban %s", gateway.ErrNotFound, userID)
}

func (g *Gateway) GetUser(_ context.Context, userID snowflake.ID) (*discord.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetUser, userID, ""); err != nil {
		return nil, err
	}
	user, ok := g.Users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", gateway.ErrNotFound, userID)
	}
	return &user, nil
}

func (g *Gateway) GetMember(_ context.Context, userID snowflake.ID) (*discord.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetMember, userID, ""); err != nil {
		return nil, err
	}
	member, ok := g.Members[userID]
	if !ok {
		return nil, fmt.Errorf("%w: member %s", gateway.ErrNotFound, userID)
	}
	member.RoleIDs = slices.Clone(member.RoleIDs)
	return &member, nil
}

func (g *Gateway) GetRoles(_ context.Context) ([]discord.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetRoles, 0, ""); err != nil {
		return nil, err
	}
	return slices.Clone(g.Roles), nil
}

func (g *Gateway) AddRole(_ context.Context, userID, roleID snowflake.ID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpAddRole, userID, reason); err != nil {
		return err
	}
	member, ok := g.Members[userID]
	if !ok {
		return fmt.Errorf("%w: member %s", gateway.ErrNotFound, userID)
	}
	if !slices.Contains(member.RoleIDs, roleID) {
		member.RoleIDs = append(slices.Clone(member.RoleIDs), roleID)
	}
	g.Members[userID] = member
	return nil
}

func (g *Gateway) GetChannel(_ context.Context, channelID snowflake.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetChannel, 0, ""); err != nil {
		return err
	}
	if !g.Channels[channelID] {
		return fmt.Errorf("%w: channel %s", gateway.ErrNotFound, channelID)
	}
	return nil
}

func (g *Gateway) SendMessage(
	_ context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (*discord.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpSendMessage, 0, ""); err != nil {
		return nil, err
	}

	g.nextID++
	stored := &Message{ID: g.nextID, ChannelID: channelID, Create: message}
	g.messages[stored.ID] = stored

	return &discord.Message{
		ID:        stored.ID,
		ChannelID: channelID,
		Content:   message.Content,
		Embeds:    message.Embeds,
	}, nil
}

func (g *Gateway) GetMessage(_ context.Context, channelID, messageID snowflake.ID) (*discord.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpGetMessage, 0, ""); err != nil {
		return nil, err
	}
	stored, ok := g.messages[messageID]
	if !ok || stored.ChannelID != channelID {
		return nil, fmt.Errorf("%w: message %s", gateway.ErrNotFound, messageID)
	}
	return &discord.Message{ID: stored.ID, ChannelID: stored.ChannelID, Embeds: stored.Embeds()}, nil
}

func (g *Gateway) EditMessage(
	_ context.Context, channelID, messageID snowflake.ID, message discord.MessageUpdate,
) (*discord.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpEditMessage, 0, ""); err != nil {
		return nil, err
	}
	stored, ok := g.messages[messageID]
	if !ok || stored.ChannelID != channelID {
		return nil, fmt.Errorf("%w: message %s", gateway.ErrNotFound, messageID)
	}
	stored.Edits = append(stored.Edits, message)
	return &discord.Message{ID: stored.ID, ChannelID: stored.ChannelID, Embeds: stored.Embeds()}, nil
}

func (g *Gateway) DeleteMessage(_ context.Context, channelID, messageID snowflake.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpDeleteMessage, 0, ""); err != nil {
		return err
	}
	stored, ok := g.messages[messageID]
	if !ok || stored.ChannelID != channelID {
		return fmt.Errorf("%w: message %s", gateway.ErrNotFound, messageID)
	}
	delete(g.messages, messageID)
	return nil
}

func (g *Gateway) SendDirectMessage(_ context.Context, userID snowflake.ID, message discord.MessageCreate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.record(OpSendDirectMessage, userID, ""); err != nil {
		return err
	}
	g.dms = append(g.dms, DirectMessage{UserID: userID, Message: message})
	return nil
}

// SeedMessage stores a message as if a user had posted it, returning its ID.
func (g *Gateway) SeedMessage(channelID snowflake.ID, content string) snowflake.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.messages[g.nextID] = &Message{
		ID:        g.nextID,
		ChannelID: channelID,
		Create:    discord.MessageCreate{Content: content},
	}
	return g.nextID
}
