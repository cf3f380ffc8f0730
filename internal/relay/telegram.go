package relay

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

// TelegramRelay delivers notifications through a Telegram bot. The channel
// address is either a numeric chat id or an @channel name.
type TelegramRelay struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramRelay authorizes the bot with the given token.
func NewTelegramRelay(token string) (*TelegramRelay, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramRelay{bot: bot}, nil
}

// Send delivers text to the channel address.
func (r *TelegramRelay) Send(ctx context.Context, channelAddress, text string) error {
	if strings.TrimSpace(channelAddress) == "" {
		return apperrors.NewRelayDeliveryFailed("channel address not configured", nil)
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(channelAddress, "@") {
		msg = tgbotapi.NewMessageToChannel(channelAddress, text)
	} else {
		chatID, err := strconv.ParseInt(channelAddress, 10, 64)
		if err != nil {
			return apperrors.NewRelayDeliveryFailed("channel address must be a chat id or @channel", err)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}

	if _, err := r.bot.Send(msg); err != nil {
		return apperrors.NewRelayDeliveryFailed("telegram send failed", err)
	}
	return nil
}
