package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory collaborators
// ─────────────────────────────────────────────────────────────────────────────

type fakeSettings struct {
	mu      sync.Mutex
	records map[string]*leveling.SettingsRecord
	cleared []string
}

func (f *fakeSettings) Get(_ context.Context, guildID string) (*leveling.SettingsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[guildID]
	if !ok {
		return nil, leveling.ErrSettingsNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSettings) ClearFallbackChannel(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, guildID)
	if rec, ok := f.records[guildID]; ok {
		rec.LevelUpNotificationFallbackChannelID = nil
	}
	return nil
}

type fakeProgress struct {
	mu    sync.Mutex
	users map[string]*leveling.UserProgress
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{users: make(map[string]*leveling.UserProgress)}
}

func (f *fakeProgress) key(guildID, userID string) string { return guildID + "/" + userID }

func (f *fakeProgress) Find(_ context.Context, guildID, userID string) (*leveling.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[f.key(guildID, userID)]
	if !ok {
		return nil, shared.NewDomainError("leveling", "FindProgress", shared.ErrNotFound, "no such user")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeProgress) Ensure(_ context.Context, guildID, userID string) (*leveling.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[f.key(guildID, userID)]
	if !ok {
		u = &leveling.UserProgress{GuildID: guildID, UserID: userID}
		f.users[f.key(guildID, userID)] = u
	}
	cp := *u
	return &cp, nil
}

func (f *fakeProgress) IncrementXP(_ context.Context, guildID, userID string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[f.key(guildID, userID)]
	if !ok {
		return 0, errors.New("no such user")
	}
	u.XP += delta
	return u.XP, nil
}

func (f *fakeProgress) set(u leveling.UserProgress) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[f.key(u.GuildID, u.UserID)] = &u
}

func (f *fakeProgress) xp(guildID, userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[f.key(guildID, userID)]; ok {
		return u.XP
	}
	return -1
}

type fakeRewards struct {
	rewards []leveling.Reward
	err     error
}

func (f *fakeRewards) ListByGuild(context.Context, string) ([]leveling.Reward, error) {
	return f.rewards, f.err
}

type fakeChannels struct {
	overrides []leveling.ChannelOverride
}

func (f *fakeChannels) FindByIDs(_ context.Context, _ string, ids []string) ([]leveling.ChannelOverride, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []leveling.ChannelOverride
	// Reverse order so the handler cannot rely on repository ordering.
	for i := len(f.overrides) - 1; i >= 0; i-- {
		if want[f.overrides[i].ChannelID] {
			out = append(out, f.overrides[i])
		}
	}
	return out, nil
}

type fakeRoleMultipliers struct {
	multipliers []leveling.RoleMultiplier
}

func (f *fakeRoleMultipliers) FindByIDs(_ context.Context, _ string, ids []string) ([]leveling.RoleMultiplier, error) {
	var out []leveling.RoleMultiplier
	for _, m := range f.multipliers {
		for _, id := range ids {
			if m.RoleID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type fakeRoles struct {
	mu      sync.Mutex
	current []leveling.MemberRole
	set     [][]string
	readErr error
	setErr  error
}

func (f *fakeRoles) MemberRoles(context.Context, string, string) ([]leveling.MemberRole, error) {
	return f.current, f.readErr
}

func (f *fakeRoles) SetMemberRoles(_ context.Context, _, _ string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, roleIDs)
	return f.setErr
}

type sentMessage struct {
	target  string
	content string
}

type fakeNotifier struct {
	mu         sync.Mutex
	channel    []sentMessage
	direct     []sentMessage
	channelErr map[string]error
	directErr  error
}

func (f *fakeNotifier) SendToChannel(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.channelErr[channelID]; err != nil {
		return err
	}
	f.channel = append(f.channel, sentMessage{channelID, content})
	return nil
}

func (f *fakeNotifier) SendDirect(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.directErr != nil {
		return f.directErr
	}
	f.direct = append(f.direct, sentMessage{userID, content})
	return nil
}

// admitAll admits every event and counts calls.
type admitAll struct {
	mu    sync.Mutex
	calls int
}

func (a *admitAll) Admit(context.Context, leveling.GuildSettings, string, string, string, time.Time) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return true, nil
}

func (a *admitAll) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
