package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildwarden/internal/modules/audit"
	"guildwarden/internal/progression"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works inside a guild.", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	options := data.Options

	switch data.Name {
	case "rank":
		b.handleRank(ctx, session, interaction, options)
	case "leaderboard":
		b.handleLeaderboard(ctx, session, interaction, options)
	case "giveaway":
		b.handleGiveaway(ctx, session, interaction, options)
	case "ticket":
		b.handleTicket(ctx, session, interaction, options)
	case "reactionrole":
		b.handleReactionRole(ctx, session, interaction, options)
	case "exempt":
		b.handleExempt(ctx, session, interaction, options)
	case "domain":
		b.handleDomain(ctx, session, interaction, options)
	case "lockdown":
		b.handleLockdown(ctx, session, interaction, options)
	case "thresholds":
		b.handleThresholds(ctx, session, interaction, options)
	case "report":
		b.handleReport(ctx, session, interaction, options)
	case "logs":
		b.handleLogs(ctx, session, interaction, options)
	default:
		b.respond(session, interaction, "Unknown command.", true)
	}
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func (b *Bot) handleRank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	userID := interactionUserID(interaction)
	for _, opt := range options {
		if opt.Name == "user" && opt.Type == discordgo.ApplicationCommandOptionUser {
			if u := opt.UserValue(session); u != nil {
				userID = u.ID
			}
		}
	}
	if userID == "" {
		b.respond(session, interaction, "Could not resolve the user.", true)
		return
	}

	record, err := b.store.GetProgression(ctx, interaction.GuildID, userID)
	if err != nil {
		b.respond(session, interaction, "Rank lookup failed.", true)
		return
	}
	level, progress, needed := progression.Breakdown(record.XP)
	position, err := b.store.RankPosition(ctx, interaction.GuildID, record.XP)
	if err != nil {
		position = 0
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d", level), Inline: true},
		{Name: "XP", Value: formatInt(record.XP), Inline: true},
		{Name: "Progress", Value: fmt.Sprintf("%d/%d (%d%%)", progress, needed, progression.Percent(progress, needed)), Inline: true},
		{Name: "Rank", Value: fmt.Sprintf("#%d", position), Inline: true},
		{Name: "Messages", Value: formatInt(record.MessagesTotal), Inline: true},
		{Name: "Voice minutes", Value: formatInt(record.VoiceMinutesTotal), Inline: true},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Rank", "<@"+userID+">", fields), false)
}

func (b *Bot) handleLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	const pageSize = 10
	page := 1
	for _, opt := range options {
		if opt.Name == "page" && opt.Type == discordgo.ApplicationCommandOptionInteger {
			page = int(opt.IntValue())
		}
	}
	if page < 1 {
		page = 1
	}

	records, err := b.store.TopProgression(ctx, interaction.GuildID, pageSize, (page-1)*pageSize)
	if err != nil {
		b.respond(session, interaction, "Leaderboard lookup failed.", true)
		return
	}
	if len(records) == 0 {
		b.respond(session, interaction, "No activity recorded yet.", true)
		return
	}

	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> · level %d · %s XP",
			(page-1)*pageSize+i+1, record.UserID, record.Level, formatInt(record.XP)))
	}
	total, _ := b.store.CountProgression(ctx, interaction.GuildID)
	description := strings.Join(lines, "\n")
	footer := fmt.Sprintf("Page %d · %d members tracked", page, total)
	embed := b.commandEmbed("Leaderboard", description, nil)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	b.respondEmbed(session, interaction, embed, false)
}

func (b *Bot) handleGiveaway(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	action := ""
	prize := ""
	minutes := 60
	winners := 1
	var id int64
	for _, opt := range options {
		switch opt.Name {
		case "action":
			action = opt.StringValue()
		case "prize":
			prize = opt.StringValue()
		case "minutes":
			minutes = int(opt.IntValue())
		case "winners":
			winners = int(opt.IntValue())
		case "id":
			id = opt.IntValue()
		}
	}

	switch action {
	case "start":
		if prize == "" {
			b.respond(session, interaction, "A prize is required to start a giveaway.", true)
			return
		}
		if minutes < 1 {
			minutes = 1
		}
		g, err := b.giveaways.Create(ctx, interaction.GuildID, interaction.ChannelID, prize, winners, time.Duration(minutes)*time.Minute)
		if err != nil {
			b.respond(session, interaction, "Could not create the giveaway.", true)
			return
		}
		msg, err := session.ChannelMessageSendEmbed(interaction.ChannelID, b.commandEmbed(
			giveawayEmoji+" Giveaway",
			fmt.Sprintf("**%s**\nReact with %s to enter! Ends <t:%d:R>. Winners: %d",
				prize, giveawayEmoji, g.EndsAt.Unix(), g.WinnerCount),
			nil))
		if err == nil && msg != nil {
			if err := b.store.SetGiveawayMessage(ctx, g.ID, msg.ID); err != nil {
				b.logger.Warn("giveaway message bind failed", zap.Error(err))
			}
			_ = session.MessageReactionAdd(interaction.ChannelID, msg.ID, giveawayEmoji)
		}
		b.respond(session, interaction, fmt.Sprintf("Giveaway #%d started.", g.ID), true)
	case "end":
		if id == 0 {
			b.respond(session, interaction, "A giveaway ID is required.", true)
			return
		}
		b.giveaways.End(ctx, id)
		b.respond(session, interaction, fmt.Sprintf("Giveaway #%d ended.", id), true)
	case "cancel":
		if id == 0 {
			b.respond(session, interaction, "A giveaway ID is required.", true)
			return
		}
		if err := b.giveaways.Cancel(ctx, id); err != nil {
			b.respond(session, interaction, "Could not cancel the giveaway.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Giveaway #%d cancelled.", id), true)
	default:
		b.respond(session, interaction, "Unknown giveaway action.", true)
	}
}

func (b *Bot) handleTicket(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	action := ""
	for _, opt := range options {
		if opt.Name == "action" {
			action = opt.StringValue()
		}
	}
	userID := interactionUserID(interaction)

	switch action {
	case "open":
		open, err := b.store.CountOpenTickets(ctx, interaction.GuildID, userID)
		if err == nil && open >= 3 {
			b.respond(session, interaction, "You already have 3 open tickets.", true)
			return
		}
		ticket, err := b.store.OpenTicket(ctx, interaction.GuildID, userID, time.Now())
		if err != nil {
			b.respond(session, interaction, "Could not open a ticket.", true)
			return
		}
		channel, err := session.GuildChannelCreateComplex(interaction.GuildID, discordgo.GuildChannelCreateData{
			Name: fmt.Sprintf("ticket-%d", ticket.Seq),
			Type: discordgo.ChannelTypeGuildText,
			PermissionOverwrites: []*discordgo.PermissionOverwrite{
				{ID: interaction.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
				{ID: userID, Type: discordgo.PermissionOverwriteTypeMember, Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages},
			},
		})
		if err != nil {
			b.respond(session, interaction, fmt.Sprintf("Ticket #%d recorded, but the channel could not be created.", ticket.Seq), true)
			return
		}
		if err := b.store.SetTicketChannel(ctx, interaction.GuildID, ticket.Seq, channel.ID); err != nil {
			b.logger.Warn("ticket channel bind failed", zap.Error(err))
		}
		_, _ = session.ChannelMessageSend(channel.ID,
			fmt.Sprintf("<@%s> opened ticket #%d. Use `/ticket close` here when resolved.", userID, ticket.Seq))
		b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, userID, "ticket", fmt.Sprintf("ticket %d opened", ticket.Seq))
		b.respond(session, interaction, fmt.Sprintf("Ticket #%d opened: <#%s>", ticket.Seq, channel.ID), true)
	case "close":
		ticket, found, err := b.store.GetOpenTicketByChannel(ctx, interaction.ChannelID)
		if err != nil || !found {
			b.respond(session, interaction, "This channel is not an open ticket.", true)
			return
		}
		if err := b.store.CloseTicket(ctx, ticket.GuildID, ticket.Seq, time.Now()); err != nil {
			b.respond(session, interaction, "Could not close the ticket.", true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, ticket.GuildID, userID, "ticket", fmt.Sprintf("ticket %d closed", ticket.Seq))
		b.respond(session, interaction, fmt.Sprintf("Ticket #%d closed.", ticket.Seq), true)
		_, _ = session.ChannelDelete(interaction.ChannelID)
	default:
		b.respond(session, interaction, "Unknown ticket action.", true)
	}
}

func (b *Bot) handleReactionRole(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	action := ""
	messageID := ""
	emoji := ""
	roleID := ""
	for _, opt := range options {
		switch opt.Name {
		case "action":
			action = opt.StringValue()
		case "message":
			messageID = opt.StringValue()
		case "emoji":
			emoji = opt.StringValue()
		case "role":
			if opt.Type == discordgo.ApplicationCommandOptionRole {
				if role := opt.RoleValue(session, interaction.GuildID); role != nil {
					roleID = role.ID
				}
			}
		}
	}

	switch action {
	case "bind":
		if messageID == "" || emoji == "" || roleID == "" {
			b.respond(session, interaction, "bind needs a message, emoji, and role.", true)
			return
		}
		binding := storage.ReactionRole{GuildID: interaction.GuildID, MessageID: messageID, Emoji: emoji, RoleID: roleID}
		if err := b.store.BindReactionRole(ctx, binding); err != nil {
			b.respond(session, interaction, "Could not bind the reaction role.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Bound %s on message %s to <@&%s>.", emoji, messageID, roleID), true)
	case "unbind":
		if messageID == "" || emoji == "" {
			b.respond(session, interaction, "unbind needs a message and emoji.", true)
			return
		}
		if err := b.store.UnbindReactionRole(ctx, messageID, emoji); err != nil {
			b.respond(session, interaction, "Could not unbind the reaction role.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Unbound %s on message %s.", emoji, messageID), true)
	case "list":
		bindings, err := b.store.ListReactionRoles(ctx, interaction.GuildID)
		if err != nil {
			b.respond(session, interaction, "Could not list reaction roles.", true)
			return
		}
		if len(bindings) == 0 {
			b.respond(session, interaction, "No reaction roles configured.", true)
			return
		}
		lines := make([]string, 0, len(bindings))
		for _, binding := range bindings {
			lines = append(lines, fmt.Sprintf("%s on %s → <@&%s>", binding.Emoji, binding.MessageID, binding.RoleID))
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Reaction roles", strings.Join(lines, "\n"), nil), true)
	default:
		b.respond(session, interaction, "Unknown reaction role action.", true)
	}
}

func (b *Bot) handleExempt(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	action := ""
	userID := ""
	roleID := ""
	for _, opt := range options {
		switch opt.Name {
		case "action":
			action = opt.StringValue()
		case "user":
			if opt.Type == discordgo.ApplicationCommandOptionUser && opt.UserValue(session) != nil {
				userID = opt.UserValue(session).ID
			}
		case "role":
			if opt.Type == discordgo.ApplicationCommandOptionRole && opt.RoleValue(session, interaction.GuildID) != nil {
				roleID = opt.RoleValue(session, interaction.GuildID).ID
			}
		}
	}

	if action == "list" {
		users, _ := b.store.ListExemptUsers(ctx, interaction.GuildID)
		roles, _ := b.store.ListExemptRoles(ctx, interaction.GuildID)
		userLines := "none"
		roleLines := "none"
		if len(users) > 0 {
			lines := make([]string, 0, len(users))
			for _, id := range users {
				lines = append(lines, "<@"+id+">")
			}
			userLines = strings.Join(lines, "\n")
		}
		if len(roles) > 0 {
			lines := make([]string, 0, len(roles))
			for _, id := range roles {
				lines = append(lines, "<@&"+id+">")
			}
			roleLines = strings.Join(lines, "\n")
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Users", Value: userLines, Inline: false},
			{Name: "Roles", Value: roleLines, Inline: false},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Exemptions", "Actors excluded from abuse tracking", fields), true)
		return
	}
	if action != "add" && action != "remove" {
		b.respond(session, interaction, "Unknown exempt action.", true)
		return
	}
	if userID == "" && roleID == "" {
		b.respond(session, interaction, "A user or role is required.", true)
		return
	}

	var err error
	target := ""
	switch {
	case userID != "" && action == "add":
		err = b.store.AddExemptUser(ctx, interaction.GuildID, userID)
		target = "<@" + userID + ">"
	case userID != "":
		err = b.store.RemoveExemptUser(ctx, interaction.GuildID, userID)
		target = "<@" + userID + ">"
	case action == "add":
		err = b.store.AddExemptRole(ctx, interaction.GuildID, roleID)
		target = "<@&" + roleID + ">"
	default:
		err = b.store.RemoveExemptRole(ctx, interaction.GuildID, roleID)
		target = "<@&" + roleID + ">"
	}
	if err != nil {
		b.respond(session, interaction, "Exemption update failed.", true)
		return
	}
	b.audit.Log(ctx, audit.LevelInfo, interaction.GuildID, interactionUserID(interaction), "exempt",
		fmt.Sprintf("action=%s target=%s", action, target))
	b.respond(session, interaction, fmt.Sprintf("Exemption %s: %s", action, target), true)
}

func (b *Bot) handleDomain(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	listType := ""
	action := ""
	domain := ""
	for _, opt := range options {
		switch opt.Name {
		case "list":
			listType = opt.StringValue()
		case "action":
			action = opt.StringValue()
		case "domain":
			domain = strings.ToLower(opt.StringValue())
		}
	}
	allow := listType == "allow"
	if !allow && listType != "block" {
		b.respond(session, interaction, "Unknown domain list.", true)
		return
	}

	switch action {
	case "add", "remove":
		if domain == "" {
			b.respond(session, interaction, "A domain is required.", true)
			return
		}
		var err error
		switch {
		case allow && action == "add":
			err = b.store.AddDomainAllow(ctx, interaction.GuildID, domain)
		case allow:
			err = b.store.RemoveDomainAllow(ctx, interaction.GuildID, domain)
		case action == "add":
			err = b.store.AddDomainBlock(ctx, interaction.GuildID, domain)
		default:
			err = b.store.RemoveDomainBlock(ctx, interaction.GuildID, domain)
		}
		if err != nil {
			b.respond(session, interaction, "Domain list update failed.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Domain %s %sed on the %s list.", domain, action, listType), true)
	case "list":
		var domains []string
		var err error
		if allow {
			domains, err = b.store.ListDomainAllow(ctx, interaction.GuildID)
		} else {
			domains, err = b.store.ListDomainBlock(ctx, interaction.GuildID)
		}
		if err != nil {
			b.respond(session, interaction, "Could not read the domain list.", true)
			return
		}
		if len(domains) == 0 {
			b.respond(session, interaction, "The "+listType+" list is empty.", true)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Domains ("+listType+")", strings.Join(domains, "\n"), nil), true)
	default:
		b.respond(session, interaction, "Unknown domain action.", true)
	}
}

func (b *Bot) handleLockdown(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	value := ""
	for _, opt := range options {
		if opt.Name == "value" {
			value = opt.StringValue()
		}
	}

	switch value {
	case "on":
		if b.lockdown.Active(interaction.GuildID) {
			b.respond(session, interaction, "A lockdown is already active.", true)
			return
		}
		b.raiseLockdown(ctx, interaction.GuildID)
		b.respond(session, interaction, fmt.Sprintf("Lockdown raised for %d minutes.", b.cfg.Lockdown.Minutes), true)
	case "off":
		if !b.lockdown.Lift(ctx, interaction.GuildID) {
			b.respond(session, interaction, "No lockdown is active.", true)
			return
		}
		b.respond(session, interaction, "Lockdown lifted.", true)
	default:
		b.respond(session, interaction, "Use on or off.", true)
	}
}

func (b *Bot) handleThresholds(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	settings := b.guildSettings(ctx, interaction.GuildID)
	action := ""
	key := ""
	count := -1
	window := -1
	for _, opt := range options {
		switch opt.Name {
		case "action":
			action = opt.StringValue()
		case "key":
			key = opt.StringValue()
		case "count":
			count = int(opt.IntValue())
		case "window":
			window = int(opt.IntValue())
		}
	}

	if action == "view" {
		fields := []*discordgo.MessageEmbedField{
			{Name: "Bans", Value: fmt.Sprintf("%d/%ds", settings.BanThreshold, settings.BanWindowSeconds), Inline: true},
			{Name: "Kicks", Value: fmt.Sprintf("%d/%ds", settings.KickThreshold, settings.KickWindowSeconds), Inline: true},
			{Name: "Channel deletes", Value: fmt.Sprintf("%d/%ds", settings.ChannelDeleteThreshold, settings.ChannelDeleteWindowSeconds), Inline: true},
			{Name: "Role deletes", Value: fmt.Sprintf("%d/%ds", settings.RoleDeleteThreshold, settings.RoleDeleteWindowSeconds), Inline: true},
			{Name: "Joins", Value: fmt.Sprintf("%d/%ds", settings.JoinThreshold, settings.JoinWindowSeconds), Inline: true},
			{Name: "Spam", Value: fmt.Sprintf("%d/%ds", settings.SpamMessages, settings.SpamWindowSeconds), Inline: true},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Thresholds", "Current abuse-rate thresholds", fields), true)
		return
	}
	if action != "set" || key == "" {
		b.respond(session, interaction, "set needs a key plus a count and/or window.", true)
		return
	}

	switch key {
	case "ban":
		if count >= 0 {
			settings.BanThreshold = count
		}
		if window >= 0 {
			settings.BanWindowSeconds = window
		}
	case "kick":
		if count >= 0 {
			settings.KickThreshold = count
		}
		if window >= 0 {
			settings.KickWindowSeconds = window
		}
	case "channel_delete":
		if count >= 0 {
			settings.ChannelDeleteThreshold = count
		}
		if window >= 0 {
			settings.ChannelDeleteWindowSeconds = window
		}
	case "role_delete":
		if count >= 0 {
			settings.RoleDeleteThreshold = count
		}
		if window >= 0 {
			settings.RoleDeleteWindowSeconds = window
		}
	case "join":
		if count >= 0 {
			settings.JoinThreshold = count
		}
		if window >= 0 {
			settings.JoinWindowSeconds = window
		}
	case "spam":
		if count >= 0 {
			settings.SpamMessages = count
		}
		if window >= 0 {
			settings.SpamWindowSeconds = window
		}
	default:
		b.respond(session, interaction, "Unknown threshold key.", true)
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Warn("threshold update failed", zap.Error(err))
		b.respond(session, interaction, "Threshold update failed.", true)
		return
	}
	b.respond(session, interaction, "Thresholds updated.", true)
}

func (b *Bot) handleReport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	period := "day"
	for _, opt := range options {
		if opt.Name == "period" {
			period = opt.StringValue()
		}
	}
	start := time.Now().Add(-24 * time.Hour)
	if period == "week" {
		start = time.Now().Add(-7 * 24 * time.Hour)
	}

	report, err := b.analytics.Report(ctx, interaction.GuildID, start)
	if err != nil {
		b.respond(session, interaction, "Report generation failed.", true)
		return
	}

	escalated := "none"
	if len(report.TopEscalated) > 0 {
		lines := make([]string, 0, len(report.TopEscalated))
		for _, id := range report.TopEscalated {
			lines = append(lines, "<@"+id+">")
		}
		escalated = strings.Join(lines, ", ")
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Total events", Value: fmt.Sprintf("%d", report.Total), Inline: true},
		{Name: "Warnings", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelWarn]), Inline: true},
		{Name: "Critical", Value: fmt.Sprintf("%d", report.ByLevel[audit.LevelCrit]), Inline: true},
		{Name: "Members tracked", Value: fmt.Sprintf("%d", report.ActiveUsers), Inline: true},
		{Name: "Escalated actors", Value: escalated, Inline: false},
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Moderation report ("+period+")", "", fields), true)
}

func (b *Bot) handleLogs(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	settings := b.guildSettings(ctx, interaction.GuildID)

	if len(options) == 0 {
		value := settings.LogChannel
		if value == "" {
			value = "not set"
		} else {
			value = "<#" + value + ">"
		}
		b.respond(session, interaction, "Moderation log channel: "+value, true)
		return
	}

	channel := options[0].ChannelValue(session)
	if channel == nil {
		b.respond(session, interaction, "Could not resolve the channel.", true)
		return
	}
	settings.LogChannel = channel.ID
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.respond(session, interaction, "Log channel update failed.", true)
		return
	}
	b.respond(session, interaction, "Moderation logs will go to <#"+channel.ID+">.", true)
}
