package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramClient implements ChatClient on top of the Telegram Bot API.
// All calls run on the runtime goroutine that owns the bot connection.
type telegramClient struct {
	api *tgbotapi.BotAPI
}

// NewTelegramChatClient wraps a connected bot as a ChatClient.
func NewTelegramChatClient(api *tgbotapi.BotAPI) ChatClient {
	return &telegramClient{api: api}
}

func (c *telegramClient) CreateInviteLink(_ context.Context, groupID int64, expireAt time.Time) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: groupID},
		Name:        "Join Group",
		MemberLimit: 1,
		ExpireDate:  int(expireAt.Unix()),
	}
	resp, err := c.api.Request(cfg)
	if err != nil {
		return "", err
	}
	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link response: %w", err)
	}
	if link.InviteLink == "" {
		return "", fmt.Errorf("empty invite link in response")
	}
	return link.InviteLink, nil
}

func (c *telegramClient) SendMessage(_ context.Context, userID int64, text string) error {
	_, err := c.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}

func (c *telegramClient) RemoveMember(_ context.Context, groupID, userID int64) error {
	// Unban removes a current member without banning, so rejoining via a
	// fresh invite stays possible. Absent users unban cleanly.
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: groupID,
			UserID: userID,
		},
		OnlyIfBanned: false,
	}
	_, err := c.api.Request(cfg)
	return err
}
