package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

var commandsAnonymous = []tgbotapi.BotCommand{
	{Command: "start", Description: "Show subscription status"},
	{Command: "help", Description: "Show available commands"},
}

var commandsReader = []tgbotapi.BotCommand{
	{Command: "stats", Description: "Response totals"},
	{Command: "slots", Description: "Remaining seats per household"},
	{Command: "history", Description: "Latest responses"},
	{Command: "start", Description: "Show subscription status"},
	{Command: "help", Description: "Show available commands"},
}

// setDefaultCommands sets the default bot menu for unknown chats.
func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsAnonymous, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", "error", err)
	}
}

// syncChatMenus gives every subscribed chat the report commands.
func (t *TgBot) syncChatMenus() {
	for chatId := range t.chatIds {
		_, err := t.api.SetMyCommands(commandsReader, &tgbotapi.SetMyCommandsOpts{
			Scope: tgbotapi.BotCommandScopeChat{ChatId: chatId},
		})
		if err != nil {
			t.log.Warn("setting chat commands", "chat_id", chatId, "error", err)
		}
	}
}
