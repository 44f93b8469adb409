package verify

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ChannelVerifier answers "is this user a member of our channel" via the
// Telegram Bot API. It is read-only and safe to call repeatedly.
type ChannelVerifier struct {
	bot     *tgbotapi.BotAPI
	channel string
	log     *zap.Logger
}

// NewChannelVerifier connects the bot API client. channel is the channel
// username, with or without the leading @.
func NewChannelVerifier(token, channel string, log *zap.Logger) (*ChannelVerifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	log.Info("channel verifier ready",
		zap.String("bot", bot.Self.UserName), zap.String("channel", channel))
	return &ChannelVerifier{bot: bot, channel: channel, log: log}, nil
}

// IsEligible reports whether the user is a member (or admin/owner) of the
// channel.
func (v *ChannelVerifier) IsEligible(_ context.Context, userID int64) (bool, error) {
	member, err := v.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: v.channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, err
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	default:
		return false, nil
	}
}

// Permissive returns a verifier that accepts everyone. Used in development
// when no bot token is configured.
func Permissive(log *zap.Logger) func(context.Context, int64) (bool, error) {
	log.Warn("no bot token configured; referral verification is permissive")
	return func(context.Context, int64) (bool, error) {
		return true, nil
	}
}
