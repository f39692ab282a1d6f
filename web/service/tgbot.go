package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/valyala/fasthttp"
	"github.com/xlzd/gotp"

	"github.com/xui-tools/xui-bot/config"
	"github.com/xui-tools/xui-bot/database/model"
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/monitor"
	"github.com/xui-tools/xui-bot/util/common"
)

var (
	bot        *telego.Bot
	botHandler *th.BotHandler
	botCtx     context.Context
	botCancel  context.CancelFunc
	adminIds   []int64
	isRunning  bool
)

// Tgbot is the Telegram front end: command handling for admins and
// subscribers, plus outbound notifications and backup delivery.
type Tgbot struct {
	panelService   *PanelService
	settingService SettingService
	serverService  ServerService
	userService    TelegramUserService
	backupService  BackupService
}

func NewTgbot(panelService *PanelService) *Tgbot {
	return &Tgbot{panelService: panelService}
}

func (t *Tgbot) Start() error {
	token := config.GetBotToken()
	if token == "" {
		return common.NewError("BOT_TOKEN is not set")
	}

	adminIds = config.GetAdminIds()
	if len(adminIds) == 0 {
		logger.Warning("ADMIN_IDS is empty, no admin commands will be available")
	}

	var err error
	bot, err = telego.NewBot(token, telego.WithFastHTTPClient(&fasthttp.Client{
		ReadTimeout:  35 * time.Second,
		WriteTimeout: 35 * time.Second,
	}))
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	if !isRunning {
		logger.Info("Starting Telegram receiver ...")
		botCtx, botCancel = context.WithCancel(context.Background())
		go t.OnReceive()
		isRunning = true
	}

	return nil
}

func (t *Tgbot) IsRunning() bool {
	return isRunning
}

func (t *Tgbot) Stop() {
	if botHandler != nil {
		botHandler.Stop()
	}
	if botCancel != nil {
		botCancel()
	}
	logger.Info("Stop Telegram receiver ...")
	isRunning = false
	adminIds = nil
}

func (t *Tgbot) OnReceive() {
	defer common.Recover("telegram receiver crashed")

	params := telego.GetUpdatesParams{
		Timeout: 10,
	}

	updates, _ := bot.UpdatesViaLongPolling(botCtx, &params)

	botHandler, _ = th.NewBotHandler(bot, updates)

	botHandler.HandleMessage(func(_ *th.Context, message telego.Message) error {
		t.SendMsgToTgbot(message.Chat.ID, "Keyboard closed.", tu.ReplyKeyboardRemove())
		return nil
	}, th.TextEqual("❌ Close Keyboard"))

	botHandler.HandleMessage(func(_ *th.Context, message telego.Message) error {
		isAdmin := checkAdmin(message.From.ID)
		if err := t.userService.Touch(message.From, isAdmin); err != nil {
			logger.Warning("record telegram user failed:", err)
		}
		t.answerCommand(&message, message.Chat.ID, isAdmin)
		return nil
	}, th.AnyCommand())

	botHandler.HandleCallbackQuery(func(_ *th.Context, query telego.CallbackQuery) error {
		t.answerCallback(&query, checkAdmin(query.From.ID))
		return nil
	}, th.AnyCallbackQueryWithMessage())

	botHandler.Start()
}

func (t *Tgbot) answerCommand(message *telego.Message, chatId int64, isAdmin bool) {
	msg := ""

	command, _, commandArgs := tu.ParseCommand(message.Text)

	switch command {
	case "start":
		msg = "Hello <i>" + message.From.FirstName + "</i> 👋"
		if isAdmin {
			hostname, _ := os.Hostname()
			msg += "\nWelcome to the <b>" + hostname + "</b> subscription bot."
		}
		msg += "\n\nWhat can I do for you?"
	case "help":
		msg = t.helpText(isAdmin)
	case "id":
		msg = fmt.Sprintf("🆔 Your chat id: <code>%d</code>", chatId)
	case "status":
		if isAdmin {
			t.sendFullStatus(chatId)
		} else {
			msg = "bot is ok ✅"
		}
	case "usage":
		if len(commandArgs) > 0 {
			t.sendUsage(chatId, commandArgs[0], isAdmin)
		} else if !isAdmin {
			t.sendOwnUsage(chatId)
		} else {
			msg = "❗ Please provide a client UUID or email."
		}
	case "link":
		if len(commandArgs) > 0 {
			t.linkSubscription(chatId, commandArgs[0])
		} else {
			msg = "❗ Usage: /link &lt;uuid|email&gt;"
		}
	case "clients":
		if isAdmin {
			t.sendClientSummary(chatId)
		} else {
			msg = "❗ Unknown command"
		}
	case "logs":
		if isAdmin {
			count := 20
			if len(commandArgs) > 0 {
				if n, err := strconv.Atoi(commandArgs[0]); err == nil && n > 0 {
					count = n
				}
			}
			t.sendLogs(chatId, count)
		} else {
			msg = "❗ Unknown command"
		}
	case "backup":
		if isAdmin {
			code := ""
			if len(commandArgs) > 0 {
				code = commandArgs[0]
			}
			t.handleBackupCommand(chatId, code)
		} else {
			msg = "❗ Unknown command"
		}
	case "notify":
		if isAdmin && len(commandArgs) > 0 {
			t.toggleNotifications(chatId, commandArgs[0])
		} else {
			msg = "❗ Unknown command"
		}
	case "pause":
		if isAdmin && len(commandArgs) > 0 {
			t.togglePolling(chatId, commandArgs[0])
		} else {
			msg = "❗ Unknown command"
		}
	case "online":
		if isAdmin {
			t.sendOnlineClients(chatId)
		} else {
			msg = "❗ Unknown command"
		}
	case "broadcast":
		if isAdmin && len(commandArgs) > 0 {
			t.broadcast(chatId, strings.Join(commandArgs, " "))
		} else if isAdmin {
			msg = "❗ Usage: /broadcast &lt;message&gt;"
		} else {
			msg = "❗ Unknown command"
		}
	default:
		msg = "❗ Unknown command"
	}

	if msg != "" {
		t.SendAnswer(chatId, msg, isAdmin)
	}
}

func (t *Tgbot) answerCallback(callbackQuery *telego.CallbackQuery, isAdmin bool) {
	if callbackQuery.Message == nil {
		return
	}
	chatId := callbackQuery.Message.GetChat().ID

	dataArray := strings.SplitN(callbackQuery.Data, " ", 2)
	action := dataArray[0]
	arg := ""
	if len(dataArray) > 1 {
		arg = dataArray[1]
	}

	switch action {
	case "usage_refresh":
		t.sendCallbackAnswer(callbackQuery.ID, "🔄 Refreshed.")
		t.sendUsage(chatId, arg, isAdmin, callbackQuery.Message.GetMessageID())
	case "usage_qr":
		t.sendCallbackAnswer(callbackQuery.ID, "📷 Generating QR ...")
		t.sendSubscriptionQR(chatId, arg)
	case "server_status":
		if isAdmin {
			t.sendCallbackAnswer(callbackQuery.ID, "")
			t.sendFullStatus(chatId)
		}
	case "get_backup":
		if isAdmin {
			t.sendCallbackAnswer(callbackQuery.ID, "")
			t.handleBackupCommand(chatId, "")
		}
	case "client_summary":
		if isAdmin {
			t.sendCallbackAnswer(callbackQuery.ID, "")
			t.sendClientSummary(chatId)
		}
	case "my_usage":
		t.sendCallbackAnswer(callbackQuery.ID, "")
		t.sendOwnUsage(chatId)
	}
}

func (t *Tgbot) helpText(isAdmin bool) string {
	msg := "Available commands:\r\n"
	msg += "/usage [uuid|email] - show subscription usage\r\n"
	msg += "/link &lt;uuid|email&gt; - receive status notifications for a subscription\r\n"
	msg += "/id - show your chat id\r\n"
	if isAdmin {
		msg += "/status - server and poll cycle status\r\n"
		msg += "/clients - subscription state summary\r\n"
		msg += "/logs [count] - recent log entries\r\n"
		msg += "/backup [totp] - create and send an encrypted database backup\r\n"
		msg += "/notify on|off - toggle status notifications\r\n"
		msg += "/pause on|off - pause or resume panel polling\r\n"
		msg += "/online - clients currently connected to the panel\r\n"
		msg += "/broadcast &lt;message&gt; - message every known chat\r\n"
	}
	return msg
}

// checkAdmin reports whether the chat id belongs to a configured admin.
func checkAdmin(tgId int64) bool {
	for _, adminId := range adminIds {
		if adminId == tgId {
			return true
		}
	}
	return false
}

func (t *Tgbot) SendAnswer(chatId int64, msg string, isAdmin bool) {
	numericKeyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Server Status").WithCallbackData("server_status"),
			tu.InlineKeyboardButton("Get DB Backup").WithCallbackData("get_backup"),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Clients").WithCallbackData("client_summary"),
		),
	)
	numericKeyboardClient := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("My Usage").WithCallbackData("my_usage"),
		),
	)
	var replyMarkup telego.ReplyMarkup
	if isAdmin {
		replyMarkup = numericKeyboard
	} else {
		replyMarkup = numericKeyboardClient
	}
	t.SendMsgToTgbot(chatId, msg, replyMarkup)
}

func (t *Tgbot) SendMsgToTgbot(chatId int64, msg string, replyMarkup ...telego.ReplyMarkup) {
	if !isRunning {
		return
	}
	if msg == "" {
		logger.Info("[tgbot] message is empty!")
		return
	}

	var allMessages []string
	limit := 2000

	// paging message if it is big
	if len(msg) > limit {
		messages := strings.Split(msg, "\r\n \r\n")
		lastIndex := -1

		for _, message := range messages {
			if (len(allMessages) == 0) || (len(allMessages[lastIndex])+len(message) > limit) {
				allMessages = append(allMessages, message)
				lastIndex++
			} else {
				allMessages[lastIndex] += "\r\n \r\n" + message
			}
		}
	} else {
		allMessages = append(allMessages, msg)
	}
	for _, message := range allMessages {
		params := telego.SendMessageParams{
			ChatID:    tu.ID(chatId),
			Text:      message,
			ParseMode: "HTML",
		}
		if len(replyMarkup) > 0 {
			params.ReplyMarkup = replyMarkup[0]
		}
		_, err := bot.SendMessage(context.Background(), &params)
		if err != nil {
			logger.Warning("Error sending telegram message :", err)
		}
	}
}

func (t *Tgbot) SendMsgToTgbotAdmins(msg string) {
	for _, adminId := range adminIds {
		t.SendMsgToTgbot(adminId, msg)
	}
}

// NotifyStatus implements StatusNotifier for the reconcile pipeline.
func (t *Tgbot) NotifyStatus(tgId int64, kind monitor.NotificationKind, status monitor.UserStatus) {
	msg := RenderNotification(kind, status)
	if msg == "" {
		return
	}
	t.SendMsgToTgbot(tgId, msg)
}

// SendReport is the scheduled admin digest: server usage plus the last
// poll cycle outcome.
func (t *Tgbot) SendReport() {
	t.SendMsgToTgbotAdmins("🕰 Scheduled report, date-time: " + time.Now().Format("2006-01-02 15:04:05"))
	status := t.serverService.GetStatus()
	info := t.serverService.FormatStatus(status)
	info += t.formatCycleStats()
	t.SendMsgToTgbotAdmins(info)
}

func (t *Tgbot) sendFullStatus(chatId int64) {
	status := t.serverService.GetStatus()
	out := t.serverService.FormatStatus(status)
	out += t.formatCycleStats()
	if users, err := t.userService.Count(); err == nil {
		out += fmt.Sprintf("💬 Known chats: %d\r\n", users)
	}
	t.SendMsgToTgbot(chatId, out)
}

func (t *Tgbot) formatCycleStats() string {
	stats := t.panelService.LastStats()
	if stats == nil {
		return "📡 No poll cycle completed yet.\r\n"
	}
	return fmt.Sprintf("📡 Last poll: %s (%s)\r\n👥 Clients: %d, ok: %d, failed: %d, notified: %d\r\n",
		stats.StartedAt.Format("2006-01-02 15:04:05"), stats.Duration.Round(time.Millisecond),
		stats.Fetched, stats.Succeeded, stats.Failed, stats.Notified)
}

func (t *Tgbot) sendUsage(chatId int64, identifier string, isAdmin bool, messageID ...int) {
	sub, err := t.panelService.GetSubscription(identifier)
	if err != nil {
		logger.Warning("usage lookup failed:", err)
		t.SendMsgToTgbot(chatId, "No result!")
		return
	}
	if !isAdmin && sub.TgId != chatId {
		t.SendMsgToTgbot(chatId, "❌ This subscription is not linked to your chat. Use /link first.")
		return
	}

	output := formatSubscription(sub)
	inlineKeyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("🔄 Refresh").WithCallbackData("usage_refresh "+identifier),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📷 Subscription QR").WithCallbackData("usage_qr "+identifier),
		),
	)
	if len(messageID) > 0 {
		t.editMessageTgBot(chatId, messageID[0], output, inlineKeyboard)
	} else {
		t.SendMsgToTgbot(chatId, output, inlineKeyboard)
	}
}

func (t *Tgbot) sendOwnUsage(chatId int64) {
	subs, err := t.panelService.GetSubscriptionsByTgId(chatId)
	if err != nil {
		logger.Warning("own usage lookup failed:", err)
		t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
		return
	}
	if len(subs) == 0 {
		t.SendMsgToTgbot(chatId, "You have no linked subscription. Use /link &lt;uuid|email&gt;.")
		return
	}
	output := ""
	for _, sub := range subs {
		output += formatSubscription(&sub) + "\r\n \r\n"
	}
	t.SendMsgToTgbot(chatId, output)
}

func (t *Tgbot) linkSubscription(chatId int64, identifier string) {
	if err := t.panelService.LinkTelegram(identifier, chatId); err != nil {
		logger.Warning("link subscription failed:", err)
		t.SendMsgToTgbot(chatId, "No result!")
		return
	}
	t.SendMsgToTgbot(chatId, "✅ Subscription linked. You will receive status notifications here.")
}

func (t *Tgbot) sendClientSummary(chatId int64) {
	counts, err := t.panelService.CountStates()
	if err != nil {
		logger.Warning("client summary failed:", err)
		t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
		return
	}
	total := int64(0)
	for _, n := range counts {
		total += n
	}
	output := fmt.Sprintf("👥 Subscriptions: %d\r\n", total)
	output += fmt.Sprintf("✅ Active: %d\r\n", counts[string(monitor.StateActive)])
	output += fmt.Sprintf("⌛️ Expired: %d\r\n", counts[string(monitor.StateExpired)])
	output += fmt.Sprintf("📛 Over quota: %d\r\n", counts[string(monitor.StateOverQuota)])
	output += fmt.Sprintf("🚫 Disabled: %d\r\n", counts[string(monitor.StateDisabled)])
	t.SendMsgToTgbot(chatId, output)
}

func (t *Tgbot) sendLogs(chatId int64, count int) {
	logs := logger.GetLogs(count, "DEBUG")
	if len(logs) == 0 {
		t.SendMsgToTgbot(chatId, "No log entries.")
		return
	}
	t.SendMsgToTgbot(chatId, strings.Join(logs, "\r\n"))
}

// handleBackupCommand verifies the TOTP code when one is configured,
// then creates and ships a backup to the requesting admin.
func (t *Tgbot) handleBackupCommand(chatId int64, code string) {
	if secret := config.GetTotpSecret(); secret != "" {
		totp := gotp.NewDefaultTOTP(secret)
		if code == "" || !totp.Verify(code, time.Now().Unix()) {
			t.SendMsgToTgbot(chatId, "🔐 A valid TOTP code is required: /backup &lt;code&gt;")
			return
		}
	}

	enabled, err := t.settingService.GetBackupEnabled()
	if err == nil && !enabled {
		t.SendMsgToTgbot(chatId, "Backups are disabled.")
		return
	}

	path, err := t.backupService.CreateBackup()
	if err != nil {
		logger.Error("manual backup failed:", err)
		t.SendMsgToTgbot(chatId, "❌ Backup failed, check the logs.")
		return
	}
	t.sendBackupFile(chatId, path)
}

// SendBackupToAdmins ships the given backup file to every admin chat.
func (t *Tgbot) SendBackupToAdmins(path string) {
	for _, adminId := range adminIds {
		t.sendBackupFile(adminId, path)
	}
}

func (t *Tgbot) sendBackupFile(chatId int64, path string) {
	if !t.IsRunning() {
		return
	}

	t.SendMsgToTgbot(chatId, "Backup time: "+time.Now().Format("2006-01-02 15:04:05"))
	file, err := os.Open(path)
	if err != nil {
		logger.Warning("Error in opening backup file: ", err)
		return
	}
	defer file.Close()

	document := tu.Document(
		tu.ID(chatId),
		tu.File(file),
	)
	if _, err = bot.SendDocument(context.Background(), document); err != nil {
		logger.Warning("Error in uploading backup: ", err)
	}
}

func (t *Tgbot) sendSubscriptionQR(chatId int64, identifier string) {
	sub, err := t.panelService.GetSubscription(identifier)
	if err != nil {
		t.SendMsgToTgbot(chatId, "No result!")
		return
	}

	url := t.panelService.SubscriptionURL(sub)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		logger.Warning("QR encode failed:", err)
		t.SendMsgToTgbot(chatId, url)
		return
	}

	photo := tu.Photo(
		tu.ID(chatId),
		tu.File(tu.NameReader(bytes.NewReader(png), "subscription.png")),
	)
	if _, err := bot.SendPhoto(context.Background(), photo); err != nil {
		logger.Warning("Error sending QR photo:", err)
	}
}

func (t *Tgbot) toggleNotifications(chatId int64, arg string) {
	switch strings.ToLower(arg) {
	case "on":
		if err := t.settingService.SetNotificationsEnabled(true); err != nil {
			t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
			return
		}
		t.SendMsgToTgbot(chatId, "🔔 Notifications enabled.")
	case "off":
		if err := t.settingService.SetNotificationsEnabled(false); err != nil {
			t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
			return
		}
		t.SendMsgToTgbot(chatId, "🔕 Notifications disabled.")
	default:
		t.SendMsgToTgbot(chatId, "❗ Usage: /notify on|off")
	}
}

func (t *Tgbot) togglePolling(chatId int64, arg string) {
	switch strings.ToLower(arg) {
	case "on":
		if err := t.settingService.SetPollPaused(true); err != nil {
			t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
			return
		}
		t.SendMsgToTgbot(chatId, "⏸ Polling paused. Use /pause off to resume.")
	case "off":
		if err := t.settingService.SetPollPaused(false); err != nil {
			t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
			return
		}
		t.SendMsgToTgbot(chatId, "▶️ Polling resumed.")
	default:
		t.SendMsgToTgbot(chatId, "❗ Usage: /pause on|off")
	}
}

func (t *Tgbot) sendOnlineClients(chatId int64) {
	ctx, cancel := context.WithTimeout(context.Background(), config.GetAPITimeout())
	defer cancel()

	emails, err := t.panelService.OnlineEmails(ctx)
	if err != nil {
		logger.Warning("online clients lookup failed:", err)
		t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
		return
	}
	if len(emails) == 0 {
		t.SendMsgToTgbot(chatId, "No clients online.")
		return
	}
	output := fmt.Sprintf("🌐 Online clients: %d\r\n", len(emails))
	for _, email := range emails {
		output += "• " + email + "\r\n"
	}
	t.SendMsgToTgbot(chatId, output)
}

// broadcast sends the text to every chat that ever talked to the bot
// and reports the delivery count back to the requesting admin.
func (t *Tgbot) broadcast(chatId int64, text string) {
	ids, err := t.userService.ChatIds()
	if err != nil {
		logger.Warning("broadcast recipient lookup failed:", err)
		t.SendMsgToTgbot(chatId, "❌ Something went wrong!")
		return
	}
	sent := 0
	for _, id := range ids {
		if id == chatId {
			continue
		}
		t.SendMsgToTgbot(id, "📢 "+text)
		sent++
	}
	t.SendMsgToTgbot(chatId, fmt.Sprintf("📢 Broadcast delivered to %d chats.", sent))
}

func (t *Tgbot) sendCallbackAnswer(id string, message string) {
	params := telego.AnswerCallbackQueryParams{
		CallbackQueryID: id,
		Text:            message,
	}
	if err := bot.AnswerCallbackQuery(context.Background(), &params); err != nil {
		logger.Warning(err)
	}
}

func (t *Tgbot) editMessageTgBot(chatId int64, messageID int, text string, inlineKeyboard ...*telego.InlineKeyboardMarkup) {
	params := telego.EditMessageTextParams{
		ChatID:    tu.ID(chatId),
		MessageID: messageID,
		Text:      text,
		ParseMode: "HTML",
	}
	if len(inlineKeyboard) > 0 {
		params.ReplyMarkup = inlineKeyboard[0]
	}
	if _, err := bot.EditMessageText(context.Background(), &params); err != nil {
		logger.Warning(err)
	}
}

// formatSubscription renders one stored subscription the way the
// /usage command shows it.
func formatSubscription(sub *model.Subscription) string {
	total := "♾ Unlimited"
	if sub.DataCapBytes > 0 {
		total = common.FormatTraffic(sub.DataCapBytes)
	}
	state := sub.LastState
	if state == "" {
		state = "unknown"
	}
	return fmt.Sprintf("📧 Email: %s\r\n💡 State: %s\r\n🔄 Used: %s / %s\r\n📅 Expires: %s\r\n🕒 Last sync: %s",
		sub.Email, state,
		common.FormatTraffic(sub.TotalUsedBytes), total,
		common.FormatExpiry(sub.ExpiryTime),
		time.Unix(sub.LastSyncAt, 0).Format("2006-01-02 15:04:05"))
}
