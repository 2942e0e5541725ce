package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
	"github.com/ChatSift/Social/pkg/circuitbreaker"
)

type fakeREST struct {
	member     discord.Member
	roles      []discord.Role
	updates    []discord.MemberUpdate
	messages   map[snowflake.ID][]string
	messageErr map[snowflake.ID]error
	dmErr      error
	getErr     error
}

func newFakeREST() *fakeREST {
	return &fakeREST{
		messages:   make(map[snowflake.ID][]string),
		messageErr: make(map[snowflake.ID]error),
	}
}

func (f *fakeREST) GetMember(snowflake.ID, snowflake.ID, ...rest.RequestOpt) (*discord.Member, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	m := f.member
	return &m, nil
}

func (f *fakeREST) UpdateMember(_ snowflake.ID, _ snowflake.ID, update discord.MemberUpdate, _ ...rest.RequestOpt) (*discord.Member, error) {
	f.updates = append(f.updates, update)
	m := f.member
	if update.Roles != nil {
		m.RoleIDs = *update.Roles
	}
	return &m, nil
}

func (f *fakeREST) GetRoles(snowflake.ID, ...rest.RequestOpt) ([]discord.Role, error) {
	return f.roles, nil
}

func (f *fakeREST) CreateMessage(channelID snowflake.ID, create discord.MessageCreate, _ ...rest.RequestOpt) (*discord.Message, error) {
	if err := f.messageErr[channelID]; err != nil {
		return nil, err
	}
	f.messages[channelID] = append(f.messages[channelID], create.Content)
	return &discord.Message{ChannelID: channelID, Content: create.Content}, nil
}

func (f *fakeREST) CreateDMChannel(snowflake.ID, ...rest.RequestOpt) (*discord.DMChannel, error) {
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	var dm discord.DMChannel
	if err := json.Unmarshal([]byte(`{"id":"900","type":1}`), &dm); err != nil {
		return nil, err
	}
	return &dm, nil
}

func TestMemberRoles_FlagsManaged(t *testing.T) {
	api := newFakeREST()
	api.member.RoleIDs = []snowflake.ID{10, 20, 30}
	api.roles = []discord.Role{{ID: 10}, {ID: 20, Managed: true}, {ID: 30}, {ID: 40, Managed: true}}

	c := newClient(api, DefaultClientConfig())
	roles, err := c.MemberRoles(context.Background(), "1", "2")
	require.NoError(t, err)
	assert.Equal(t, []leveling.MemberRole{
		{ID: "10"},
		{ID: "20", Managed: true},
		{ID: "30"},
	}, roles)
}

func TestSetMemberRoles_KeepsManagedRoles(t *testing.T) {
	api := newFakeREST()
	api.member.RoleIDs = []snowflake.ID{10, 20}
	api.roles = []discord.Role{{ID: 10}, {ID: 20, Managed: true}, {ID: 40, Managed: true}}

	c := newClient(api, DefaultClientConfig())
	require.NoError(t, c.SetMemberRoles(context.Background(), "1", "2", []string{"50", "60", "50"}))

	require.Len(t, api.updates, 1)
	require.NotNil(t, api.updates[0].Roles)
	assert.Equal(t, []snowflake.ID{50, 60, 20}, *api.updates[0].Roles)
}

func TestSetMemberRoles_Errors(t *testing.T) {
	api := newFakeREST()
	c := newClient(api, DefaultClientConfig())

	err := c.SetMemberRoles(context.Background(), "1", "2", []string{"not-a-snowflake"})
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = c.SetMemberRoles(context.Background(), "guild", "2", nil)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	api.getErr = errors.New("gateway timeout")
	err = c.SetMemberRoles(context.Background(), "1", "2", []string{"5"})
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Empty(t, api.updates)
}

func TestSendToChannel(t *testing.T) {
	api := newFakeREST()
	api.messageErr[7] = &rest.Error{Code: unknownChannelCode}
	api.messageErr[8] = &rest.Error{Response: &http.Response{StatusCode: http.StatusNotFound}}
	api.messageErr[9] = errors.New("rate limited")

	c := newClient(api, DefaultClientConfig())
	ctx := context.Background()

	require.NoError(t, c.SendToChannel(ctx, "5", "hello"))
	assert.Equal(t, []string{"hello"}, api.messages[5])

	assert.True(t, leveling.IsChannelNotFound(c.SendToChannel(ctx, "7", "x")))
	assert.True(t, leveling.IsChannelNotFound(c.SendToChannel(ctx, "8", "x")))

	err := c.SendToChannel(ctx, "9", "x")
	assert.False(t, leveling.IsChannelNotFound(err))
	assert.ErrorIs(t, err, shared.ErrExternalService)

	assert.ErrorIs(t, c.SendToChannel(ctx, "#general", "x"), shared.ErrInvalidArgument)
}

func TestSendDirect(t *testing.T) {
	api := newFakeREST()
	c := newClient(api, DefaultClientConfig())

	require.NoError(t, c.SendDirect(context.Background(), "2", "gg"))
	assert.Equal(t, []string{"gg"}, api.messages[900])

	api.dmErr = errors.New("cannot send messages to this user")
	assert.ErrorIs(t, c.SendDirect(context.Background(), "2", "gg"), shared.ErrExternalService)
}

func TestMessage_RestrictsMentions(t *testing.T) {
	m := message("<@&1> <@2>")
	require.NotNil(t, m.AllowedMentions)
	assert.Equal(t, []discord.AllowedMentionType{discord.AllowedMentionTypeUsers}, m.AllowedMentions.Parse)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	api := newFakeREST()
	api.messageErr[5] = &rest.Error{Response: &http.Response{StatusCode: http.StatusBadGateway}}
	api.messageErr[7] = &rest.Error{Code: unknownChannelCode, Response: &http.Response{StatusCode: http.StatusNotFound}}

	cfg := DefaultClientConfig()
	cfg.Breaker = circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithIsFailure(isUpstreamFailure))
	c := newClient(api, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, leveling.IsChannelNotFound(c.SendToChannel(ctx, "7", "x")))
	}
	assert.NoError(t, c.CheckAvailability(ctx))
	assert.Equal(t, circuitbreaker.StateClosed, cfg.Breaker.State())

	_ = c.SendToChannel(ctx, "5", "x")
	_ = c.SendToChannel(ctx, "5", "x")
	assert.Equal(t, circuitbreaker.StateOpen, cfg.Breaker.State())

	assert.ErrorIs(t, c.CheckAvailability(ctx), circuitbreaker.ErrOpen)
	err := c.SendToChannel(ctx, "6", "x")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Empty(t, api.messages[6])
}

func TestIsUpstreamFailure(t *testing.T) {
	assert.True(t, isUpstreamFailure(errors.New("connection reset")))
	assert.True(t, isUpstreamFailure(&rest.Error{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}))
	assert.True(t, isUpstreamFailure(&rest.Error{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}))
	assert.False(t, isUpstreamFailure(&rest.Error{Response: &http.Response{StatusCode: http.StatusForbidden}}))
	assert.False(t, isUpstreamFailure(context.Canceled))
}
