// Package gateway exposes the guild operations the moderation engines need on top of the
// disgo REST client, translating platform failures into a small error taxonomy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
)

var (
	// ErrPermissionDenied indicates the bot lacks a capability required by the call.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound indicates the referenced user, member, role, ban or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited indicates the platform rejected the call because of rate limits.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient covers network failures and any other unexpected platform response.
	ErrTransient = errors.New("transient gateway failure")
)

// Gateway is the set of guild capabilities consumed by the ban and verification engines.
// Every call is a single request; nothing is retried.
type Gateway interface {
	// GuildID returns the guild all operations are scoped to.
	GuildID() snowflake.ID
	// SelfID returns the user ID of the bot itself.
	SelfID() snowflake.ID
	GuildName(ctx context.Context) (string, error)

	GetBans(ctx context.Context) ([]discord.Ban, error)
	GetBan(ctx context.Context, userID snowflake.ID) (*discord.Ban, error)
	Ban(ctx context.Context, userID snowflake.ID, reason string) error
	Unban(ctx context.Context, userID snowflake.ID, reason string) error

	GetUser(ctx context.Context, userID snowflake.ID) (*discord.User, error)
	GetMember(ctx context.Context, userID snowflake.ID) (*discord.Member, error)
	GetRoles(ctx context.Context) ([]discord.Role, error)
	AddRole(ctx context.Context, userID, roleID snowflake.ID, reason string) error

	GetChannel(ctx context.Context, channelID snowflake.ID) error
	SendMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (*discord.Message, error)
	GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error)
	EditMessage(
		ctx context.Context, channelID, messageID snowflake.ID, message discord.MessageUpdate,
	) (*discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	SendDirectMessage(ctx context.Context, userID snowflake.ID, message discord.MessageCreate) error
}

// Client implements Gateway with the disgo REST client.
type Client struct {
	rest    rest.Rest
	guildID snowflake.ID
	selfID  snowflake.ID
}

var _ Gateway = (*Client)(nil)

// New creates a gateway scoped to a single guild.
func New(restClient rest.Rest, guildID, selfID snowflake.ID) *Client {
	return &Client{
		rest:    restClient,
		guildID: guildID,
		selfID:  selfID,
	}
}

// GuildID returns the guild all operations are scoped to.
func (c *Client) GuildID() snowflake.ID {
	return c.guildID
}

// SelfID returns the user ID of the bot.
func (c *Client) SelfID() snowflake.ID {
	return c.selfID
}

// GuildName fetches the display name of the guild.
func (c *Client) GuildName(ctx context.Context) (string, error) {
	guild, err := c.rest.GetGuild(c.guildID, false, rest.WithCtx(ctx))
	if err != nil {
		return "", Classify(err)
	}
	return guild.Name, nil
}

// GetBans fetches the complete ban set in the order the platform returns it.
func (c *Client) GetBans(ctx context.Context) ([]discord.Ban, error) {
	var (
		bans  []discord.Ban
		after snowflake.ID
	)

	for {
		page, err := c.rest.GetBans(c.guildID, 0, after, constants.BanListPageSize, rest.WithCtx(ctx))
		if err != nil {
			return nil, Classify(err)
		}

		bans = append(bans, page...)

		// A short page means there is nothing left to fetch
		if len(page) < constants.BanListPageSize {
			return bans, nil
		}

		after = page[len(page)-1].User.ID
	}
}

// GetBan fetches the active ban for a user or returns ErrNotFound.
func (c *Client) GetBan(ctx context.Context, userID snowflake.ID) (*discord.Ban, error) {
	ban, err := c.rest.GetBan(c.guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return ban, nil
}

// Ban bans a user from the guild without deleting their message history.
func (c *Client) Ban(ctx context.Context, userID snowflake.ID, reason string) error {
	err := c.rest.AddBan(c.guildID, userID, time.Duration(0), rest.WithCtx(ctx), rest.WithReason(reason))
	return Classify(err)
}

// Unban lifts the ban for a user.
func (c *Client) Unban(ctx context.Context, userID snowflake.ID, reason string) error {
	err := c.rest.DeleteBan(c.guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason))
	return Classify(err)
}

// GetUser resolves any platform user, member of the guild or not.
func (c *Client) GetUser(ctx context.Context, userID snowflake.ID) (*discord.User, error) {
	user, err := c.rest.GetUser(userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return user, nil
}

// GetMember resolves a guild member or returns ErrNotFound if the user is not in the guild.
func (c *Client) GetMember(ctx context.Context, userID snowflake.ID) (*discord.Member, error) {
	member, err := c.rest.GetMember(c.guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return member, nil
}

// GetRoles fetches every role of the guild.
func (c *Client) GetRoles(ctx context.Context) ([]discord.Role, error) {
	roles, err := c.rest.GetRoles(c.guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return roles, nil
}

// AddRole grants a role to a guild member.
func (c *Client) AddRole(ctx context.Context, userID, roleID snowflake.ID, reason string) error {
	err := c.rest.AddMemberRole(c.guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	return Classify(err)
}

// GetChannel checks that a channel exists and is visible to the bot.
func (c *Client) GetChannel(ctx context.Context, channelID snowflake.ID) error {
	_, err := c.rest.GetChannel(channelID, rest.WithCtx(ctx))
	return Classify(err)
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(
	ctx context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (*discord.Message, error) {
	msg, err := c.rest.CreateMessage(channelID, message, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return msg, nil
}

// GetMessage fetches a message or returns ErrNotFound if it was deleted.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error) {
	msg, err := c.rest.GetMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return msg, nil
}

// EditMessage replaces the content of a message previously sent by the bot.
func (c *Client) EditMessage(
	ctx context.Context, channelID, messageID snowflake.ID, message discord.MessageUpdate,
) (*discord.Message, error) {
	msg, err := c.rest.UpdateMessage(channelID, messageID, message, rest.WithCtx(ctx))
	if err != nil {
		return nil, Classify(err)
	}
	return msg, nil
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	return Classify(c.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx)))
}

// SendDirectMessage opens a DM channel with the user and posts the message there.
func (c *Client) SendDirectMessage(ctx context.Context, userID snowflake.ID, message discord.MessageCreate) error {
	channel, err := c.rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return Classify(err)
	}

	_, err = c.rest.CreateMessage(channel.ID(), message, rest.WithCtx(ctx))
	return Classify(err)
}

// Classify maps a REST failure onto the gateway error taxonomy while keeping the original
// error in the chain. A nil error stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	// Already classified by an inner call
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) {
		return err
	}

	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Message returns the platform's own error text when available, for user-facing replies.
func Message(err error) string {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Message != "" {
		return restErr.Message
	}
	return err.Error()
}
