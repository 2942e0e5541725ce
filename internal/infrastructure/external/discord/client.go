// Package discord implements the Discord side of the leveling core: reading
// and replacing member roles, and delivering level-up messages. It talks to
// the Discord REST API through disgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
	"github.com/ChatSift/Social/pkg/circuitbreaker"
	"github.com/ChatSift/Social/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// unknownChannelCode is the Discord JSON error code for a deleted channel.
const unknownChannelCode = 10003

// ClientConfig contains configuration for the Discord client.
type ClientConfig struct {
	// Timeout bounds every REST call made on behalf of one operation.
	Timeout time.Duration

	// Breaker guards REST calls. Nil installs one that only counts
	// server-side failures.
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 10 * time.Second,
	}
}

// restAPI is the part of disgo's rest.Rest the client uses.
type restAPI interface {
	GetMember(guildID snowflake.ID, userID snowflake.ID, opts ...rest.RequestOpt) (*discord.Member, error)
	UpdateMember(guildID snowflake.ID, userID snowflake.ID, memberUpdate discord.MemberUpdate, opts ...rest.RequestOpt) (*discord.Member, error)
	GetRoles(guildID snowflake.ID, opts ...rest.RequestOpt) ([]discord.Role, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements leveling.RoleService and leveling.Notifier.
type Client struct {
	rest    restAPI
	config  ClientConfig
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

var (
	_ leveling.RoleService = (*Client)(nil)
	_ leveling.Notifier    = (*Client)(nil)
)

// NewClient creates a new Discord client on top of a disgo REST client.
func NewClient(api rest.Rest, config ClientConfig) *Client {
	return newClient(api, config)
}

func newClient(api restAPI, config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClientConfig().Timeout
	}
	log := config.Logger.With(logger.Component("discord"))
	breaker := config.Breaker
	if breaker == nil {
		breaker = circuitbreaker.New("discord-rest",
			circuitbreaker.WithIsFailure(isUpstreamFailure),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}),
		)
	}
	return &Client{
		rest:    api,
		config:  config,
		breaker: breaker,
		logger:  log,
	}
}

// CheckAvailability fails while the REST circuit breaker is open.
func (c *Client) CheckAvailability(context.Context) error {
	if c.breaker.State() == circuitbreaker.StateOpen {
		return circuitbreaker.ErrOpen
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Roles
// ─────────────────────────────────────────────────────────────────────────────

// MemberRoles returns the roles the member holds, flagging managed ones.
func (c *Client) MemberRoles(ctx context.Context, guildID, userID string) ([]leveling.MemberRole, error) {
	gid, uid, err := parseIDs(guildID, userID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	member, err := c.getMember(ctx, gid, uid)
	if err != nil {
		return nil, c.wrap("MemberRoles", "failed to fetch member", err)
	}
	managed, err := c.managedRoles(ctx, gid)
	if err != nil {
		return nil, err
	}

	roles := make([]leveling.MemberRole, 0, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		_, isManaged := managed[id]
		roles = append(roles, leveling.MemberRole{ID: id.String(), Managed: isManaged})
	}
	return roles, nil
}

// SetMemberRoles replaces the member's roles with roleIDs. Managed roles the
// member currently holds are kept, since Discord refuses to remove them.
func (c *Client) SetMemberRoles(ctx context.Context, guildID, userID string, roleIDs []string) error {
	gid, uid, err := parseIDs(guildID, userID)
	if err != nil {
		return err
	}

	target := make([]snowflake.ID, 0, len(roleIDs))
	seen := make(map[snowflake.ID]struct{}, len(roleIDs))
	for _, raw := range roleIDs {
		id, err := snowflake.Parse(raw)
		if err != nil {
			return shared.WrapError("discord", "SetMemberRoles", shared.ErrInvalidArgument,
				fmt.Sprintf("bad role id %q", raw), err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		target = append(target, id)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	member, err := c.getMember(ctx, gid, uid)
	if err != nil {
		return c.wrap("SetMemberRoles", "failed to fetch member", err)
	}
	managed, err := c.managedRoles(ctx, gid)
	if err != nil {
		return err
	}
	for _, id := range member.RoleIDs {
		if _, isManaged := managed[id]; !isManaged {
			continue
		}
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			target = append(target, id)
		}
	}

	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.rest.UpdateMember(gid, uid, discord.MemberUpdate{Roles: &target}, rest.WithCtx(ctx))
		return err
	})
	if err != nil {
		return c.wrap("SetMemberRoles", "failed to update member roles", err)
	}

	c.logger.DebugContext(ctx, "member roles replaced",
		logger.GuildID(guildID),
		logger.UserID(userID),
		slog.Int("roles", len(target)),
	)
	return nil
}

func (c *Client) getMember(ctx context.Context, guildID, userID snowflake.ID) (*discord.Member, error) {
	var member *discord.Member
	err := c.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		member, err = c.rest.GetMember(guildID, userID, rest.WithCtx(ctx))
		return err
	})
	return member, err
}

func (c *Client) managedRoles(ctx context.Context, guildID snowflake.ID) (map[snowflake.ID]struct{}, error) {
	var roles []discord.Role
	err := c.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		roles, err = c.rest.GetRoles(guildID, rest.WithCtx(ctx))
		return err
	})
	if err != nil {
		return nil, c.wrap("GetRoles", "failed to fetch guild roles", err)
	}
	managed := make(map[snowflake.ID]struct{})
	for _, r := range roles {
		if r.Managed {
			managed[r.ID] = struct{}{}
		}
	}
	return managed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Messages
// ─────────────────────────────────────────────────────────────────────────────

// SendToChannel posts content to a guild channel. A channel that no longer
// exists is reported as leveling.ErrChannelNotFound.
func (c *Client) SendToChannel(ctx context.Context, channelID, content string) error {
	id, err := snowflake.Parse(channelID)
	if err != nil {
		return shared.WrapError("discord", "SendToChannel", shared.ErrInvalidArgument,
			fmt.Sprintf("bad channel id %q", channelID), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.createMessage(ctx, id, content); err != nil {
		if isUnknownChannel(err) {
			return fmt.Errorf("channel %s: %w", channelID, leveling.ErrChannelNotFound)
		}
		return c.wrap("SendToChannel", "failed to send message", err)
	}
	return nil
}

// SendDirect opens a DM channel with the user and posts content there.
func (c *Client) SendDirect(ctx context.Context, userID, content string) error {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return shared.WrapError("discord", "SendDirect", shared.ErrInvalidArgument,
			fmt.Sprintf("bad user id %q", userID), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var dm *discord.DMChannel
	err = c.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		dm, err = c.rest.CreateDMChannel(id, rest.WithCtx(ctx))
		return err
	})
	if err != nil {
		return c.wrap("SendDirect", "failed to open DM channel", err)
	}
	if err := c.createMessage(ctx, dm.ID(), content); err != nil {
		return c.wrap("SendDirect", "failed to send DM", err)
	}
	return nil
}

func (c *Client) createMessage(ctx context.Context, channelID snowflake.ID, content string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.rest.CreateMessage(channelID, message(content), rest.WithCtx(ctx))
		return err
	})
}

// message builds the outgoing payload. Mentions in level-up messages are
// rendered but never ping roles or everyone.
func message(content string) discord.MessageCreate {
	return discord.MessageCreate{
		Content: content,
		AllowedMentions: &discord.AllowedMentions{
			Parse: []discord.AllowedMentionType{discord.AllowedMentionTypeUsers},
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func parseIDs(guildID, userID string) (snowflake.ID, snowflake.ID, error) {
	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return 0, 0, shared.WrapError("discord", "ParseID", shared.ErrInvalidArgument,
			fmt.Sprintf("bad guild id %q", guildID), err)
	}
	uid, err := snowflake.Parse(userID)
	if err != nil {
		return 0, 0, shared.WrapError("discord", "ParseID", shared.ErrInvalidArgument,
			fmt.Sprintf("bad user id %q", userID), err)
	}
	return gid, uid, nil
}

func isUnknownChannel(err error) bool {
	var restErr *rest.Error
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Code == unknownChannelCode {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// isUpstreamFailure reports whether err says Discord itself is unhealthy.
// Client errors such as missing permissions or unknown channels do not count.
func isUpstreamFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		status := restErr.Response.StatusCode
		return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) wrap(op, message string, err error) error {
	return shared.WrapError("discord", op, shared.ErrExternalService, message, err)
}
