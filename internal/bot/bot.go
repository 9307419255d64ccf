package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"guildwarden/internal/abuse"
	"guildwarden/internal/analytics"
	"guildwarden/internal/config"
	"guildwarden/internal/giveaway"
	"guildwarden/internal/lockdown"
	"guildwarden/internal/modules/antispam"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/modules/linkfilter"
	"guildwarden/internal/progression"
	"guildwarden/internal/storage"
	"guildwarden/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const giveawayEmoji = "🎉"

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session

	detector  *abuse.Detector
	lockdown  *lockdown.Engine
	giveaways *giveaway.Scheduler
	voice     *voice.Tracker
	antispam  *antispam.Module
	links     *linkfilter.Module

	escalatedMu sync.Mutex
	escalated   map[string]time.Time
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsService,
		session:   session,
		escalated: make(map[string]time.Time),
	}

	pruneEvery := time.Duration(cfg.Abuse.JoinPruneSeconds) * time.Second
	b.detector = abuse.New(store, auditLogger, pruneEvery)
	b.lockdown = lockdown.New(store, auditLogger, time.Duration(cfg.Lockdown.Minutes)*time.Minute, b.revertLockdown)
	b.giveaways = giveaway.New(store, auditLogger, b.announceGiveaway)
	b.voice = voice.NewTracker(b.creditVoice, time.Duration(cfg.Progression.VoiceFlushSeconds)*time.Second, logger)
	b.antispam = antispam.New(auditLogger)
	b.links = linkfilter.New(store, auditLogger)

	auditLogger.SetNotifier(b.notifyAudit)
	return b, nil
}

func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onRoleDelete)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	if err := b.registerCommands(); err != nil {
		return err
	}

	b.detector.Start()
	b.voice.Start(ctx)
	if err := b.lockdown.Resume(ctx); err != nil {
		b.logger.Warn("lockdown resume failed", zap.Error(err))
	}
	if err := b.giveaways.Resume(ctx); err != nil {
		b.logger.Warn("giveaway resume failed", zap.Error(err))
	}
	b.startRetentionLoop(ctx)
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	b.giveaways.Close()
	b.lockdown.Close()
	b.detector.Close()
	b.voice.Close(ctx)
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	ctx := context.Background()
	settings := b.guildSettings(ctx, msg.GuildID)

	if count, tripped := b.antispam.HandleMessage(ctx, msg.GuildID, msg.Author.ID, settings.SpamMessages, settings.SpamWindowSeconds); tripped {
		b.handleSpamBurst(ctx, session, msg, count)
		return
	}

	flagged, reason, err := b.links.CheckMessage(ctx, msg.GuildID, msg.Author.ID, msg.Content)
	if err != nil {
		b.logger.Warn("link check failed", zap.Error(err))
	}
	if flagged {
		_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)
		b.logToChannel(ctx, msg.GuildID, fmt.Sprintf("Removed a message from <@%s>: %s", msg.Author.ID, reason))
		return
	}

	b.grantMessageXP(ctx, session, msg)
}

func (b *Bot) handleSpamBurst(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate, count int) {
	_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)

	strikes, err := b.store.IncrementStrike(ctx, msg.GuildID, msg.Author.ID, "spam", time.Hour)
	if err != nil {
		b.logger.Warn("strike increment failed", zap.Error(err))
		return
	}
	if strikes < 3 {
		return
	}

	until := time.Now().Add(10 * time.Minute)
	if err := b.session.GuildMemberTimeout(msg.GuildID, msg.Author.ID, &until); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, "action_failed", "spam timeout failed: "+err.Error())
		return
	}
	b.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.ID, "spam_timeout",
		fmt.Sprintf("strikes=%d burst=%dmsg", strikes, count))
}

func (b *Bot) grantMessageXP(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate) {
	cooldown := time.Duration(b.cfg.Progression.CooldownSeconds) * time.Second
	result, err := b.store.ApplyMessageActivity(ctx, msg.GuildID, msg.Author.ID, b.cfg.Progression.MessageXP, cooldown, time.Now())
	if err != nil {
		b.logger.Warn("xp grant failed", zap.Error(err))
		return
	}
	if result.NewLevel <= result.OldLevel {
		return
	}

	_, _ = session.ChannelMessageSend(msg.ChannelID,
		fmt.Sprintf("<@%s> reached level %d! 🎊", msg.Author.ID, result.NewLevel))
	b.syncLevelRoles(msg.GuildID, msg.Author.ID, result.NewLevel)
}

func (b *Bot) syncLevelRoles(guildID, userID string, level int) {
	if len(b.cfg.Progression.LevelRoles) == 0 {
		return
	}
	member := b.memberForUser(guildID, userID)
	if member == nil {
		return
	}
	plan := progression.PlanRoles(b.cfg.Progression.LevelRoles, level, member.Roles)
	if plan.Add != "" {
		if err := b.session.GuildMemberRoleAdd(guildID, userID, plan.Add); err != nil {
			b.logger.Warn("level role add failed", zap.String("role", plan.Add), zap.Error(err))
		}
	}
	for _, roleID := range plan.Remove {
		if err := b.session.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
			b.logger.Warn("level role remove failed", zap.String("role", roleID), zap.Error(err))
		}
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.Member.GuildID == "" {
		return
	}
	ctx := context.Background()
	guildID := event.Member.GuildID
	settings := b.guildSettings(ctx, guildID)

	userID := ""
	if event.Member.User != nil {
		userID = event.Member.User.ID
	}
	if _, exceeded := b.detector.CheckJoinRate(ctx, settings, userID); !exceeded {
		return
	}
	b.raiseLockdown(ctx, guildID)
}

func (b *Bot) raiseLockdown(ctx context.Context, guildID string) {
	prevGate := b.guildVerificationLevel(guildID)
	raised, err := b.lockdown.Trigger(ctx, guildID, prevGate)
	if err != nil {
		b.logger.Warn("lockdown trigger failed", zap.Error(err))
		return
	}
	if !raised {
		return
	}

	level := discordgo.VerificationLevelHigh
	if _, err := b.session.GuildEdit(guildID, &discordgo.GuildParams{VerificationLevel: &level}); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, guildID, "", "action_failed", "verification raise failed: "+err.Error())
	}
	b.logToChannel(ctx, guildID, fmt.Sprintf("⚠️ Join surge detected. Lockdown raised for %d minutes.", b.cfg.Lockdown.Minutes))
	b.notifyOperators(fmt.Sprintf("Lockdown raised in guild %s", guildID))
}

func (b *Bot) revertLockdown(ctx context.Context, guildID string, prevJoinGate int) {
	level := discordgo.VerificationLevel(prevJoinGate)
	if _, err := b.session.GuildEdit(guildID, &discordgo.GuildParams{VerificationLevel: &level}); err != nil {
		b.audit.Log(ctx, audit.LevelWarn, guildID, "", "action_failed", "verification restore failed: "+err.Error())
	}
	b.logToChannel(ctx, guildID, "Lockdown lifted, verification level restored.")
}

func (b *Bot) guildVerificationLevel(guildID string) int {
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, _ = b.session.Guild(guildID)
	}
	if guild == nil {
		return 0
	}
	return int(guild.VerificationLevel)
}

func (b *Bot) onGuildBanAdd(session *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	actorID := b.resolveAuditActor(event.GuildID, discordgo.AuditLogActionMemberBanAdd, event.User.ID)
	b.handleModeratorAction(context.Background(), event.GuildID, actorID, abuse.KindBanAdd, event.User.ID)
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.Member == nil || event.Member.GuildID == "" || event.Member.User == nil {
		return
	}
	// A plain leave has no matching kick entry in the audit log.
	actorID := b.resolveAuditActor(event.Member.GuildID, discordgo.AuditLogActionMemberKick, event.Member.User.ID)
	if actorID == "" {
		return
	}
	b.handleModeratorAction(context.Background(), event.Member.GuildID, actorID, abuse.KindKick, event.Member.User.ID)
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil || event.Channel.GuildID == "" {
		return
	}
	actorID := b.resolveAuditActor(event.Channel.GuildID, discordgo.AuditLogActionChannelDelete, event.Channel.ID)
	b.handleModeratorAction(context.Background(), event.Channel.GuildID, actorID, abuse.KindChannelDelete, event.Channel.ID)
}

func (b *Bot) onRoleDelete(session *discordgo.Session, event *discordgo.GuildRoleDelete) {
	if event.GuildID == "" || event.RoleID == "" {
		return
	}
	actorID := b.resolveAuditActor(event.GuildID, discordgo.AuditLogActionRoleDelete, event.RoleID)
	b.handleModeratorAction(context.Background(), event.GuildID, actorID, abuse.KindRoleDelete, event.RoleID)
}

func (b *Bot) handleModeratorAction(ctx context.Context, guildID, actorID, kind, targetID string) {
	if actorID == "" || !b.cfg.Abuse.Enabled {
		return
	}
	if actorID == b.session.State.User.ID {
		return
	}
	settings := b.guildSettings(ctx, guildID)

	var actorRoles []string
	if member := b.memberForUser(guildID, actorID); member != nil {
		actorRoles = member.Roles
	}

	count, exceeded, err := b.detector.RecordAndCheck(ctx, settings, actorID, kind, targetID, actorRoles)
	if err != nil {
		b.logger.Warn("abuse check failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	if !exceeded {
		return
	}
	b.escalate(ctx, settings, actorID, kind, count)
}

// escalate applies the configured sanction against an actor who crossed an
// abuse threshold. With dedupe "once" an actor is sanctioned a single time
// per burst; "every" re-applies on each event past the threshold.
func (b *Bot) escalate(ctx context.Context, settings storage.GuildSettings, actorID, kind string, count int) {
	if !b.cfg.Escalation.Enabled {
		b.audit.Log(ctx, audit.LevelInfo, settings.GuildID, actorID, "enforcement_disabled", "escalation skipped")
		return
	}

	if settings.EscalationDedupe == "once" {
		_, window := escalationWindow(settings, kind)
		key := settings.GuildID + ":" + actorID + ":" + kind
		b.escalatedMu.Lock()
		last, seen := b.escalated[key]
		if seen && time.Since(last) < window {
			b.escalatedMu.Unlock()
			return
		}
		b.escalated[key] = time.Now()
		b.escalatedMu.Unlock()
	}

	mode := settings.EscalationMode
	detail := fmt.Sprintf("mode=%s kind=%s count=%d", mode, kind, count)
	b.audit.Log(ctx, audit.LevelCrit, settings.GuildID, actorID, "escalation", detail)

	switch mode {
	case "ban":
		if err := b.session.GuildBanCreateWithReason(settings.GuildID, actorID, "abuse rate exceeded", 0); err != nil {
			b.audit.Log(ctx, audit.LevelWarn, settings.GuildID, actorID, "action_failed", "escalation ban failed: "+err.Error())
		}
	case "kick":
		if err := b.session.GuildMemberDeleteWithReason(settings.GuildID, actorID, "abuse rate exceeded"); err != nil {
			b.audit.Log(ctx, audit.LevelWarn, settings.GuildID, actorID, "action_failed", "escalation kick failed: "+err.Error())
		}
	default:
		b.stripRoles(ctx, settings.GuildID, actorID)
	}

	b.notifyOperators(fmt.Sprintf("Escalated against <@%s> in guild %s: %s", actorID, settings.GuildID, detail))
}

// stripRoles removes the actor's roles one by one; a failure on one role
// must not stop the rest.
func (b *Bot) stripRoles(ctx context.Context, guildID, actorID string) {
	member := b.memberForUser(guildID, actorID)
	if member == nil {
		b.audit.Log(ctx, audit.LevelWarn, guildID, actorID, "action_failed", "strip roles: member not found")
		return
	}
	for _, roleID := range member.Roles {
		if err := b.session.GuildMemberRoleRemove(guildID, actorID, roleID); err != nil {
			b.audit.Log(ctx, audit.LevelWarn, guildID, actorID, "action_failed", "strip role "+roleID+" failed")
		}
	}
}

// pruneEscalated drops dedupe entries older than maxAge. An entry only
// matters within its kind's window, so anything older is garbage.
func (b *Bot) pruneEscalated(now time.Time, maxAge time.Duration) {
	b.escalatedMu.Lock()
	defer b.escalatedMu.Unlock()
	for key, at := range b.escalated {
		if now.Sub(at) > maxAge {
			delete(b.escalated, key)
		}
	}
}

func escalationWindow(settings storage.GuildSettings, kind string) (int, time.Duration) {
	switch kind {
	case abuse.KindBanAdd:
		return settings.BanThreshold, time.Duration(settings.BanWindowSeconds) * time.Second
	case abuse.KindKick:
		return settings.KickThreshold, time.Duration(settings.KickWindowSeconds) * time.Second
	case abuse.KindChannelDelete:
		return settings.ChannelDeleteThreshold, time.Duration(settings.ChannelDeleteWindowSeconds) * time.Second
	case abuse.KindRoleDelete:
		return settings.RoleDeleteThreshold, time.Duration(settings.RoleDeleteWindowSeconds) * time.Second
	default:
		return 0, time.Minute
	}
}

func (b *Bot) resolveAuditActor(guildID string, actionType discordgo.AuditLogAction, targetID string) string {
	logs, err := b.session.GuildAuditLog(guildID, "", "", int(actionType), 5)
	if err != nil || logs == nil {
		return ""
	}
	for _, entry := range logs.AuditLogEntries {
		if entry == nil {
			continue
		}
		if targetID != "" && entry.TargetID != targetID {
			continue
		}
		ts, err := discordgo.SnowflakeTimestamp(entry.ID)
		if err == nil && time.Since(ts) > 30*time.Second {
			continue
		}
		return entry.UserID
	}
	return ""
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, event *discordgo.VoiceStateUpdate) {
	if event.VoiceState == nil || event.GuildID == "" || event.UserID == "" {
		return
	}
	if member := event.Member; member != nil && member.User != nil && member.User.Bot {
		return
	}
	ctx := context.Background()

	switch {
	case event.ChannelID == "":
		b.voice.HandleLeave(ctx, event.GuildID, event.UserID)
	case event.BeforeUpdate != nil && event.BeforeUpdate.ChannelID != "" && event.BeforeUpdate.ChannelID != event.ChannelID:
		b.voice.HandleSwitch(event.GuildID, event.UserID, event.ChannelID)
	default:
		b.voice.HandleJoin(event.GuildID, event.UserID, event.ChannelID)
	}
}

func (b *Bot) creditVoice(ctx context.Context, guildID, userID string, minutes int64) {
	result, err := b.store.ApplyVoiceActivity(ctx, guildID, userID, minutes, b.cfg.Progression.VoiceXPPerMinute, time.Now())
	if err != nil {
		b.logger.Warn("voice xp grant failed", zap.Error(err))
		return
	}
	if result.NewLevel > result.OldLevel {
		b.syncLevelRoles(guildID, userID, result.NewLevel)
		b.logToChannel(ctx, guildID, fmt.Sprintf("<@%s> reached level %d! 🎊", userID, result.NewLevel))
	}
}

func (b *Bot) onReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.GuildID == "" || event.UserID == "" || event.UserID == session.State.User.ID {
		return
	}
	ctx := context.Background()

	if event.Emoji.Name == giveawayEmoji {
		if g, found, err := b.store.GetGiveawayByMessage(ctx, event.MessageID); err == nil && found && !g.Ended {
			_, _ = b.store.AddGiveawayEntry(ctx, g.ID, event.UserID)
			return
		}
	}

	roleID, err := b.store.GetReactionRole(ctx, event.MessageID, event.Emoji.Name)
	if err != nil || roleID == "" {
		return
	}
	if err := session.GuildMemberRoleAdd(event.GuildID, event.UserID, roleID); err != nil {
		b.logger.Warn("reaction role add failed", zap.String("role", roleID), zap.Error(err))
	}
}

func (b *Bot) onReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	if event.GuildID == "" || event.UserID == "" {
		return
	}
	ctx := context.Background()

	if event.Emoji.Name == giveawayEmoji {
		if g, found, err := b.store.GetGiveawayByMessage(ctx, event.MessageID); err == nil && found && !g.Ended {
			_ = b.store.RemoveGiveawayEntry(ctx, g.ID, event.UserID)
			return
		}
	}

	roleID, err := b.store.GetReactionRole(ctx, event.MessageID, event.Emoji.Name)
	if err != nil || roleID == "" {
		return
	}
	if err := session.GuildMemberRoleRemove(event.GuildID, event.UserID, roleID); err != nil {
		b.logger.Warn("reaction role remove failed", zap.String("role", roleID), zap.Error(err))
	}
}

func (b *Bot) announceGiveaway(ctx context.Context, g storage.Giveaway, winners []string) {
	if len(winners) == 0 {
		_, _ = b.session.ChannelMessageSend(g.ChannelID,
			fmt.Sprintf("The giveaway for **%s** ended with no entries.", g.Prize))
		return
	}
	mentions := ""
	for i, winner := range winners {
		if i > 0 {
			mentions += ", "
		}
		mentions += "<@" + winner + ">"
	}
	_, _ = b.session.ChannelMessageSend(g.ChannelID,
		fmt.Sprintf("%s Congratulations %s! You won **%s**.", giveawayEmoji, mentions, g.Prize))
}

func (b *Bot) startRetentionLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(6 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil {
					b.logger.Warn("audit log cleanup failed", zap.Error(err))
				}
				if err := b.store.CleanupAbuseEvents(ctx, b.cfg.RetentionDays); err != nil {
					b.logger.Warn("abuse event cleanup failed", zap.Error(err))
				}
				b.pruneEscalated(time.Now(), time.Hour)
			}
		}
	}()
}

func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if entry.Level == audit.LevelInfo {
		return
	}
	message := fmt.Sprintf("[%s] %s", entry.Level, entry.Event)
	if entry.UserID != "" {
		message += " <@" + entry.UserID + ">"
	}
	if entry.Details != "" {
		message += " " + entry.Details
	}
	b.logToChannel(ctx, entry.GuildID, message)
}

func (b *Bot) logToChannel(ctx context.Context, guildID, message string) {
	settings := b.guildSettings(ctx, guildID)
	channelID := settings.LogChannel
	if channelID == "" {
		channelID = b.cfg.DefaultLogChannel
	}
	if channelID == "" {
		return
	}
	_, _ = b.session.ChannelMessageSend(channelID, message)
}

func (b *Bot) notifyOperators(message string) {
	for _, operatorID := range b.cfg.Operators {
		channel, err := b.session.UserChannelCreate(operatorID)
		if err != nil {
			continue
		}
		_, _ = b.session.ChannelMessageSend(channel.ID, message)
	}
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:                    guildID,
		LogChannel:                 b.cfg.DefaultLogChannel,
		EscalationMode:             b.cfg.Escalation.Mode,
		EscalationDedupe:           b.cfg.Escalation.Dedupe,
		RetentionDays:              b.cfg.RetentionDays,
		BanThreshold:               b.cfg.Abuse.BanThreshold,
		BanWindowSeconds:           b.cfg.Abuse.BanWindowSeconds,
		KickThreshold:              b.cfg.Abuse.KickThreshold,
		KickWindowSeconds:          b.cfg.Abuse.KickWindowSeconds,
		ChannelDeleteThreshold:     b.cfg.Abuse.ChannelDeleteThreshold,
		ChannelDeleteWindowSeconds: b.cfg.Abuse.ChannelDeleteWindowSeconds,
		RoleDeleteThreshold:        b.cfg.Abuse.RoleDeleteThreshold,
		RoleDeleteWindowSeconds:    b.cfg.Abuse.RoleDeleteWindowSeconds,
		JoinThreshold:              b.cfg.Abuse.JoinThreshold,
		JoinWindowSeconds:          b.cfg.Abuse.JoinWindowSeconds,
		SpamMessages:               b.cfg.Spam.Messages,
		SpamWindowSeconds:          b.cfg.Spam.WindowSeconds,
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       0x5865F2,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
