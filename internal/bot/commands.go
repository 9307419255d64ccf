package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "rank",
			Description: "Show level and XP for you or another member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to look up",
					Required:    false,
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the guild XP leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page to show",
					Required:    false,
				},
			},
		},
		{
			Name:        "giveaway",
			Description: "Manage giveaways",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "start, end, or cancel",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "start", Value: "start"},
						{Name: "end", Value: "end"},
						{Name: "cancel", Value: "cancel"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prize",
					Description: "Prize to give away (start)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Duration in minutes (start)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "winners",
					Description: "Number of winners (start)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "id",
					Description: "Giveaway ID (end, cancel)",
					Required:    false,
				},
			},
		},
		{
			Name:        "ticket",
			Description: "Open or close a support ticket",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "open or close",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "open", Value: "open"},
						{Name: "close", Value: "close"},
					},
				},
			},
		},
		{
			Name:        "reactionrole",
			Description: "Bind or unbind a role to a message reaction",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "bind, unbind, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "bind", Value: "bind"},
						{Name: "unbind", Value: "unbind"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Message ID",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "emoji",
					Description: "Emoji name",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to grant",
					Required:    false,
				},
			},
		},
		{
			Name:        "exempt",
			Description: "Manage moderators exempt from abuse tracking",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to exempt",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "Role to exempt",
					Required:    false,
				},
			},
		},
		{
			Name:        "domain",
			Description: "Manage the link filter domain lists",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "list",
					Description: "allow or block",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "allow", Value: "allow"},
						{Name: "block", Value: "block"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "domain",
					Description: "Domain name",
					Required:    false,
				},
			},
		},
		{
			Name:        "lockdown",
			Description: "Raise or lift a guild lockdown",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "value",
					Description: "on or off",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
					},
				},
			},
		},
		{
			Name:        "thresholds",
			Description: "View or set abuse-rate thresholds",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "view or set",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "view", Value: "view"},
						{Name: "set", Value: "set"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "key",
					Description: "Threshold to set",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "ban", Value: "ban"},
						{Name: "kick", Value: "kick"},
						{Name: "channel_delete", Value: "channel_delete"},
						{Name: "role_delete", Value: "role_delete"},
						{Name: "join", Value: "join"},
						{Name: "spam", Value: "spam"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "Events allowed inside the window",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "window",
					Description: "Window in seconds",
					Required:    false,
				},
			},
		},
		{
			Name:        "report",
			Description: "Show a moderation activity report",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "day or week",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
		{
			Name:        "logs",
			Description: "Show or set the moderation log channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to receive moderation logs",
					Required:    false,
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(commands))
	for _, cmd := range commands {
		known[cmd.Name] = true
	}
	for _, cmd := range commands {
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}
	for _, cmd := range existing {
		if !known[cmd.Name] {
			_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
		}
	}
	return nil
}
