package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"placement_workflow/internal/app"
	"placement_workflow/internal/domain/subject"
	idb "placement_workflow/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const pendingListSize = 20

// AdminHandlers serves the superadmin's review commands.
type AdminHandlers struct {
	ctx             context.Context
	adminService    *app.AdminService
	machine         *app.StatusMachine
	query           *app.SubjectQueryService
	auditTrail      *app.AuditTrail
	adminTelegramID int64
	logger          *logrus.Entry
}

func NewAdminHandlers(
	ctx context.Context,
	adminService *app.AdminService,
	machine *app.StatusMachine,
	query *app.SubjectQueryService,
	auditTrail *app.AuditTrail,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) *AdminHandlers {
	return &AdminHandlers{
		ctx:             ctx,
		adminService:    adminService,
		machine:         machine,
		query:           query,
		auditTrail:      auditTrail,
		adminTelegramID: adminTelegramID,
		logger:          baseLogger.WithField("handler_group", "admin"),
	}
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(b *telebot.Bot, h *AdminHandlers) {
	b.Handle("/pending", h.handlePending)
	b.Handle("/approve", h.handleApprove)
	b.Handle("/reject", h.handleReject)
	b.Handle("/history", h.handleHistory)
	b.Handle("/link_user", h.handleLinkUser)
}

// authorize returns a logger for the command, or false if the sender is not
// the configured admin.
func (h *AdminHandlers) authorize(c telebot.Context, command string) (*logrus.Entry, bool) {
	logCtx := h.logger.WithFields(logrus.Fields{
		"handler":   command,
		"sender_id": c.Sender().ID,
	})
	logCtx.Info("Command received")
	if err := h.adminService.Authorize(c.Sender().ID); err != nil {
		logCtx.Warn("Unauthorized access attempt")
		return logCtx, false
	}
	return logCtx, true
}

func actorFor(c telebot.Context) string {
	return fmt.Sprintf("telegram:%d", c.Sender().ID)
}

// describeError turns a service error into a reply for the admin.
func describeError(err error) string {
	switch {
	case errors.Is(err, app.ErrSubjectNotFound):
		return "Error: subject not found."
	case errors.Is(err, app.ErrIllegalTransition):
		return fmt.Sprintf("Error: transition not allowed (%v).", err)
	case errors.Is(err, app.ErrMissingRejectionReason):
		return "Error: a rejection reason is required."
	case errors.Is(err, app.ErrInvalidInput):
		return fmt.Sprintf("Error: %v.", err)
	case errors.Is(err, app.ErrStorageUnavailable):
		return "Storage is unavailable right now. Please try again later."
	default:
		return fmt.Sprintf("An error occurred: %v", err)
	}
}

const unauthorizedReply = "Error: you are not allowed to run this command."

func (h *AdminHandlers) handlePending(c telebot.Context) error {
	logCtx, ok := h.authorize(c, "/pending")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	var kind subject.Kind
	if args := c.Args(); len(args) > 0 {
		kind = subject.Kind(strings.ToLower(args[0]))
	}
	page, err := h.query.ListSubjects(h.ctx, kind, app.SubjectFilter{Status: string(subject.StatusPending)}, 1, pendingListSize)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to list pending subjects")
		return c.Send(describeError(err))
	}
	if page.TotalCount == 0 {
		return c.Send("Nothing is waiting for review.")
	}

	var response strings.Builder
	fmt.Fprintf(&response, "Pending review: %d\n\n", page.TotalCount)
	for _, s := range page.Items {
		fmt.Fprintf(&response, "%s | %s | %s <%s>\n", s.ID, s.Kind, s.Metadata.Name, s.Metadata.Email)
	}
	if page.HasNext {
		fmt.Fprintf(&response, "\n...and %d more.", page.TotalCount-len(page.Items))
	}
	logCtx.WithField("count", page.TotalCount).Info("Listed pending subjects")
	return c.Send(response.String())
}

func (h *AdminHandlers) handleApprove(c telebot.Context) error {
	logCtx, ok := h.authorize(c, "/approve")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Invalid format. Use: /approve <subjectID>")
	}
	subjectID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: subject ID must be a UUID.")
	}
	logCtx = logCtx.WithField("subject_id", subjectID)

	t, err := h.machine.RequestTransition(h.ctx, subjectID, subject.StatusApproved, actorFor(c), "")
	if err != nil {
		logCtx.WithError(err).Warn("Approval failed")
		return c.Send(describeError(err))
	}
	logCtx.WithField("transition_id", t.ID).Info("Subject approved")
	return c.Send(fmt.Sprintf("Subject %s approved.", subjectID))
}

func (h *AdminHandlers) handleReject(c telebot.Context) error {
	logCtx, ok := h.authorize(c, "/reject")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Send("Invalid format. Use: /reject <subjectID> <reason>")
	}
	subjectID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: subject ID must be a UUID.")
	}
	reason := strings.Join(args[1:], " ")
	logCtx = logCtx.WithField("subject_id", subjectID)

	t, err := h.machine.RequestTransition(h.ctx, subjectID, subject.StatusRejected, actorFor(c), reason)
	if err != nil {
		logCtx.WithError(err).Warn("Rejection failed")
		return c.Send(describeError(err))
	}
	logCtx.WithField("transition_id", t.ID).Info("Subject rejected")
	return c.Send(fmt.Sprintf("Subject %s rejected. Reason: %s", subjectID, t.Reason.String))
}

func (h *AdminHandlers) handleHistory(c telebot.Context) error {
	logCtx, ok := h.authorize(c, "/history")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Send("Invalid format. Use: /history <subjectID>")
	}
	subjectID, err := uuid.Parse(args[0])
	if err != nil {
		return c.Send("Error: subject ID must be a UUID.")
	}

	history, err := h.auditTrail.History(h.ctx, subjectID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to load history")
		return c.Send(describeError(err))
	}
	if len(history) == 0 {
		return c.Send("No transitions recorded yet.")
	}

	var response strings.Builder
	fmt.Fprintf(&response, "History of %s:\n", subjectID)
	for _, t := range history {
		fmt.Fprintf(&response, "%s  %s -> %s by %s", t.OccurredAt.Format("2006-01-02 15:04"), t.FromStatus, t.ToStatus, t.ActorID)
		if t.Reason.Valid {
			fmt.Fprintf(&response, " (%s)", t.Reason.String)
		}
		response.WriteString("\n")
	}
	return c.Send(response.String())
}

func (h *AdminHandlers) handleLinkUser(c telebot.Context) error {
	logCtx, ok := h.authorize(c, "/link_user")
	if !ok {
		return c.Send(unauthorizedReply)
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Send("Invalid format. Use: /link_user <userID> <telegramID>")
	}
	chatID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Send("Error: Telegram ID must be a number.")
	}
	logCtx = logCtx.WithFields(logrus.Fields{"user_id": args[0], "chat_id": chatID})

	link, err := h.adminService.LinkTelegramUser(h.ctx, c.Sender().ID, args[0], chatID)
	if err != nil {
		if errors.Is(err, idb.ErrChatAlreadyLinked) {
			return c.Send("Error: this Telegram chat was just linked to another user.")
		}
		logCtx.WithError(err).Warn("Failed to link telegram user")
		return c.Send(describeError(err))
	}
	logCtx.Info("Telegram user linked")
	return c.Send(fmt.Sprintf("User %s will receive notifications in chat %d.", link.UserID, link.ChatID))
}
