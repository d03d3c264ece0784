// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainTelegram "placement_workflow/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// BotCommands answers /start and /help for the admin, linked users and
// strangers.
type BotCommands struct {
	ctx             context.Context
	adminTelegramID int64
	links           domainTelegram.LinkRepository
	logger          *logrus.Entry
}

func NewBotCommands(ctx context.Context, adminTelegramID int64, links domainTelegram.LinkRepository, baseLogger *logrus.Entry) *BotCommands {
	return &BotCommands{
		ctx:             ctx,
		adminTelegramID: adminTelegramID,
		links:           links,
		logger:          baseLogger.WithField("handler_group", "start_help"),
	}
}

func RegisterBotCommands(b *telebot.Bot, h *BotCommands) {
	b.Handle("/start", h.handleStart)
	b.Handle("/help", h.handleHelp)
}

func (h *BotCommands) handleStart(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithField("command", "/start").WithField("sender_id", senderID)
	logCtx.Info("Processing /start command")

	if senderID == h.adminTelegramID {
		logCtx.Info("User identified as Admin")
		return c.Send(fmt.Sprintf("Hello, %s! Review requests are waiting for you. Use /help for the list of commands.", c.Sender().FirstName))
	}

	link, err := h.links.GetByChatID(h.ctx, senderID)
	if err == nil {
		logCtx.WithField("user_id", link.UserID).Info("User identified as linked recipient")
		return c.Send("Hello! Your placement portal notifications are delivered to this chat.")
	} else if !errors.Is(err, domainTelegram.ErrLinkNotFound) {
		logCtx.WithError(err).Error("Error checking telegram link for /start command")
		return c.Send("Something went wrong while checking your account. Please try again later.")
	}

	logCtx.Info("User is unknown")
	return c.Send(fmt.Sprintf("Hello! To receive placement portal notifications here, ask an administrator to link your account. Your Telegram ID is %d.", senderID))
}

func (h *BotCommands) handleHelp(c telebot.Context) error {
	senderID := c.Sender().ID
	logCtx := h.logger.WithField("command", "/help").WithField("sender_id", senderID)
	logCtx.Info("Processing /help command")

	if senderID == h.adminTelegramID {
		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/pending [student|admin|institution]`\n - List subjects waiting for review.\n\n")
		helpText.WriteString("`/approve <subjectID>`\n - Approve a subject.\n\n")
		helpText.WriteString("`/reject <subjectID> <reason>`\n - Reject a subject with a reason.\n\n")
		helpText.WriteString("`/history <subjectID>`\n - Show the status history of a subject.\n\n")
		helpText.WriteString("`/link_user <userID> <telegramID>`\n - Deliver a user's notifications to a Telegram chat.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}

	return c.Send("I forward your placement portal notifications. Press \"Mark as read\" under a message to mark it read in the portal.")
}
