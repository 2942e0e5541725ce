// Package discord turns Discord gateway events into leveling commands.
package discord

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/sync/semaphore"

	"github.com/ChatSift/Social/internal/application/command"
	"github.com/ChatSift/Social/internal/domain/leveling"
	"github.com/ChatSift/Social/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LISTENER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ListenerConfig contains configuration for the listener.
type ListenerConfig struct {
	// MaxInFlight bounds the number of messages processed concurrently.
	MaxInFlight int64

	// EventTimeout bounds the processing of a single message.
	EventTimeout time.Duration

	Logger *slog.Logger
}

// DefaultListenerConfig returns sensible defaults.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		MaxInFlight:  64,
		EventTimeout: 15 * time.Second,
	}
}

// ActivityProcessor processes one activity event.
type ActivityProcessor interface {
	Handle(ctx context.Context, cmd command.ProcessActivityCommand) (*leveling.LevelUpResult, error)
}

// Directory answers the structural questions about a guild the gateway
// event does not carry.
type Directory interface {
	// ParentID returns the parent (category or thread channel) of a channel.
	ParentID(channelID snowflake.ID) (snowflake.ID, bool)
	GuildName(guildID snowflake.ID) string
}

// ══════════════════════════════════════════════════════════════════════════════
// LISTENER
// ══════════════════════════════════════════════════════════════════════════════

// Listener feeds guild messages into the leveling engine.
type Listener struct {
	processor ActivityProcessor
	directory Directory
	config    ListenerConfig
	logger    *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	// mu orders wg.Add in Dispatch against wg.Wait in Close.
	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewListener creates a new listener.
func NewListener(processor ActivityProcessor, directory Directory, config ListenerConfig) *Listener {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = DefaultListenerConfig().MaxInFlight
	}
	if config.EventTimeout <= 0 {
		config.EventTimeout = DefaultListenerConfig().EventTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		processor: processor,
		directory: directory,
		config:    config,
		logger:    config.Logger.With(logger.Component("gateway")),
		sem:       semaphore.NewWeighted(config.MaxInFlight),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// EventListener returns the disgo listener to register on the bot client.
func (l *Listener) EventListener() bot.EventListener {
	return bot.NewListenerFunc(l.OnGuildMessageCreate)
}

// OnGuildMessageCreate schedules the message for processing without blocking
// the gateway.
func (l *Listener) OnGuildMessageCreate(e *events.GuildMessageCreate) {
	l.Dispatch(e.GuildID, e.Message)
}

// Dispatch processes msg in the background. It blocks only while the
// in-flight limit is reached.
func (l *Listener) Dispatch(guildID snowflake.ID, msg discord.Message) {
	cmd, ok := l.commandFor(guildID, msg)
	if !ok {
		return
	}

	if err := l.sem.Acquire(l.ctx, 1); err != nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.sem.Release(1)
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer l.sem.Release(1)
		l.process(cmd)
	}()
}

// Close stops accepting messages and waits for in-flight ones, up to ctx.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Listener) process(cmd command.ProcessActivityCommand) {
	// Detached from the shutdown signal so a started grant can finish.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), l.config.EventTimeout)
	defer cancel()

	result, err := l.processor.Handle(ctx, cmd)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to process activity",
			logger.GuildID(cmd.GuildID),
			logger.UserID(cmd.UserID),
			logger.EventID(cmd.EventID),
			logger.Err(err),
		)
		return
	}
	if result != nil {
		l.logger.InfoContext(ctx, "member levelled up",
			logger.GuildID(result.GuildID),
			logger.UserID(result.UserID),
			logger.Level(result.Level),
			logger.XP(result.XP),
		)
	}
}

// commandFor converts a guild message into an activity command. Messages
// from bots, system users and webhooks do not count.
func (l *Listener) commandFor(guildID snowflake.ID, msg discord.Message) (command.ProcessActivityCommand, bool) {
	if msg.Author.Bot || msg.Author.System || msg.WebhookID != nil {
		return command.ProcessActivityCommand{}, false
	}

	timestamp := msg.CreatedAt
	if timestamp.IsZero() {
		timestamp = msg.ID.Time()
	}

	channel := leveling.ChannelContext{ChannelID: msg.ChannelID.String()}
	if parent, ok := l.directory.ParentID(msg.ChannelID); ok {
		channel.ParentID = parent.String()
		if grandparent, ok := l.directory.ParentID(parent); ok {
			channel.GrandparentID = grandparent.String()
		}
	}

	var roleIDs []string
	if msg.Member != nil {
		roleIDs = make([]string, 0, len(msg.Member.RoleIDs))
		for _, id := range msg.Member.RoleIDs {
			roleIDs = append(roleIDs, id.String())
		}
	}

	return command.ProcessActivityCommand{
		GuildID:   guildID.String(),
		UserID:    msg.Author.ID.String(),
		Channel:   channel,
		EventID:   msg.ID.String(),
		Timestamp: timestamp,
		RoleIDs:   roleIDs,
		Username:  msg.Author.Username,
		GuildName: l.directory.GuildName(guildID),
	}, true
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache-backed directory
// ─────────────────────────────────────────────────────────────────────────────

// CacheDirectory answers Directory questions from the gateway cache.
type CacheDirectory struct {
	caches cache.Caches
}

// NewCacheDirectory creates a directory over disgo's caches.
func NewCacheDirectory(caches cache.Caches) *CacheDirectory {
	return &CacheDirectory{caches: caches}
}

// ParentID implements Directory.
func (d *CacheDirectory) ParentID(channelID snowflake.ID) (snowflake.ID, bool) {
	ch, ok := d.caches.Channel(channelID)
	if !ok {
		return 0, false
	}
	parent := ch.ParentID()
	if parent == nil {
		return 0, false
	}
	return *parent, true
}

// GuildName implements Directory.
func (d *CacheDirectory) GuildName(guildID snowflake.ID) string {
	if g, ok := d.caches.Guild(guildID); ok {
		return g.Name
	}
	return ""
}
