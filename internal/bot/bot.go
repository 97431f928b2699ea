package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"intersell-bot/internal/models"
	"intersell-bot/internal/referral"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
)

const stateWaitingUPI = "WAITING_UPI_ID"

type Bot struct {
	Instance    *telego.Bot
	Ledger      referral.Ledger
	Processor   *referral.Processor
	UserStates  map[int64]string
	StatesMu    sync.RWMutex
	ChannelLink string
	AppLink     string
}

func NewBot(token string, ledger referral.Ledger, processor *referral.Processor, channelLink, appLink string) (*Bot, error) {
	tgBot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		Instance:    tgBot,
		Ledger:      ledger,
		Processor:   processor,
		UserStates:  make(map[int64]string),
		ChannelLink: channelLink,
		AppLink:     appLink,
	}, nil
}

// registerUser is the upsert-on-first-sight path. Code generation races
// with concurrent inserts, so a conflict from the store means regenerate
// and try again.
func (b *Bot) registerUser(ctx context.Context, from *telego.User) (*models.User, error) {
	profile := referral.Profile{Username: from.Username, FirstName: from.FirstName}
	for attempt := 0; attempt < 5; attempt++ {
		code, err := referral.UniqueCode(ctx, b.Ledger)
		if err != nil {
			return nil, err
		}
		user, created, err := b.Ledger.UpsertNewUser(ctx, from.ID, profile, code)
		if errors.Is(err, referral.ErrCodeConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if created {
			log.Printf("New user registered: %d (%s)", from.ID, user.ReferralCode)
		}
		return user, nil
	}
	return nil, referral.ErrCodeConflict
}

// notifyReferrer tells the referrer about an accepted referral. The
// unlock line is driven by the processor's Unlocked flag, which fires on
// exactly one acceptance, so retries cannot re-announce it.
func (b *Bot) notifyReferrer(ctx context.Context, res *referral.Result) {
	msg := fmt.Sprintf("🎉 New Referral!\n\nYou got ₹%d for new referral!\nTotal Referrals: %d\nBalance: ₹%d",
		referral.RewardPerReferral, res.NewCount, res.NewBalance)
	if res.Unlocked {
		msg += "\n\n🎊 Congratulations! You now have withdrawal access!"
	}

	if _, err := b.Instance.SendMessage(ctx, tu.Message(tu.ID(res.ReferrerID), msg)); err != nil {
		log.Printf("Failed to notify referrer %d: %v", res.ReferrerID, err)
	}
}

func (b *Bot) botUsername(ctx context.Context) string {
	if info, err := b.Instance.GetMe(ctx); err == nil {
		return info.Username
	}
	return "intersell_bot"
}

func mainMenuKeyboard(withdrawalAccess bool) *telego.InlineKeyboardMarkup {
	rows := [][]telego.InlineKeyboardButton{
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📤 Get Referral Link").WithCallbackData("get_referral")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("💰 Check Balance").WithCallbackData("check_balance")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("🎁 Get App Link").WithCallbackData("get_app_link")),
	}
	if withdrawalAccess {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("💸 Withdraw Earnings").WithCallbackData("withdraw_earnings"),
		))
	}
	return tu.InlineKeyboard(rows...)
}

func backKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📤 Get Referral Link").WithCallbackData("get_referral")),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("🔙 Back to Menu").WithCallbackData("main_menu")),
	)
}

func accessMark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func withdrawalStatusLine(user *models.User) string {
	if user.WithdrawalAccess {
		return "✅ Available"
	}
	return fmt.Sprintf("❌ Need %d more referrals", referral.RemainingForUnlock(user.ReferralCount))
}

func (b *Bot) sendMainMenu(ctx context.Context, chatID int64, user *models.User) {
	msg := fmt.Sprintf("🏠 *Main Menu - Internet Sell App*\n\n"+
		"💰 *Earning Plan:*\n"+
		"• 500MB Internet Sell = ₹100\n"+
		"• 1GB Internet Sell = ₹200\n"+
		"• ₹%d per referral\n\n"+
		"📊 *Your Stats:*\n"+
		"• Referrals: %d/%d\n"+
		"• Balance: ₹%d\n"+
		"• App Access: %s\n"+
		"• Withdrawal Access: %s\n\n"+
		"🔔 *Status:* %d referrals needed for full access",
		referral.RewardPerReferral,
		user.ReferralCount, referral.UnlockThreshold,
		user.Balance,
		accessMark(user.AppAccess),
		accessMark(user.WithdrawalAccess),
		referral.RemainingForUnlock(user.ReferralCount))

	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
		WithParseMode(telego.ModeMarkdown).
		WithReplyMarkup(mainMenuKeyboard(user.WithdrawalAccess)))
}

func (b *Bot) sendJoinGate(ctx context.Context, chatID int64) {
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📢 Join Channel").WithURL(b.ChannelLink)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("✅ Verify Join").WithCallbackData("verify_join")),
	)

	msg := "🤖 *Welcome to Internet Sell App Bot!*\n\n" +
		"💰 *Earn Money by Selling Internet:*\n" +
		"• 500MB Internet Sell = ₹100\n" +
		"• 1GB Internet Sell = ₹200\n\n" +
		"🎁 *How to Get Started:*\n" +
		"1. Join our official channel\n" +
		"2. Refer 10 friends to join\n" +
		"3. Get the app download link\n" +
		"4. Start selling internet & earn money!\n\n" +
		"👥 *Referral Program:*\n" +
		"• ₹15 per successful referral\n" +
		"• Withdrawal after 10 referrals only\n" +
		"• UPI withdrawal available\n\n" +
		"👇 Click below to join the channel and start earning!"

	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
		WithParseMode(telego.ModeMarkdown).
		WithReplyMarkup(keyboard))
}

func (b *Bot) sendReferralInfo(ctx context.Context, chatID int64, user *models.User) {
	link := referral.Link(b.botUsername(ctx), user.ReferralCode)

	msg := fmt.Sprintf("📤 *Your Referral System*\n\n"+
		"🔗 *Your Referral Link:*\n`%s`\n\n"+
		"📊 *Your Referrals:* %d/%d\n"+
		"💰 *Earnings:* ₹%d\n"+
		"💸 *Withdrawal Access:* %s\n\n"+
		"💡 Share your link — every friend who joins with it earns you ₹%d. "+
		"Complete %d referrals to unlock the app and withdrawals.",
		link,
		user.ReferralCount, referral.UnlockThreshold,
		referral.Earnings(user.ReferralCount),
		withdrawalStatusLine(user),
		referral.RewardPerReferral, referral.UnlockThreshold)

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📢 Share Link").
			WithURL(fmt.Sprintf("https://t.me/share/url?url=%s", link))),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("🔙 Back to Menu").WithCallbackData("main_menu")),
	)

	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
		WithParseMode(telego.ModeMarkdown).
		WithReplyMarkup(keyboard))
}

func (b *Bot) sendBalance(ctx context.Context, chatID int64, user *models.User) {
	msg := fmt.Sprintf("💰 *Your Earnings Summary*\n\n"+
		"📊 *Current Balance:* ₹%d\n"+
		"👥 *Total Referrals:* %d\n"+
		"💵 *Referral Earnings:* ₹%d\n"+
		"🎯 *Remaining for Full Access:* %d referrals\n"+
		"💸 *Withdrawal Access:* %s\n\n"+
		"💸 *Withdrawal Info:*\n"+
		"• Minimum withdrawal: ₹%d\n"+
		"• Withdrawal after %d referrals only\n"+
		"• UPI withdrawal, processed within 24 hours",
		user.Balance,
		user.ReferralCount,
		referral.Earnings(user.ReferralCount),
		referral.RemainingForUnlock(user.ReferralCount),
		withdrawalStatusLine(user),
		referral.MinWithdrawal, referral.UnlockThreshold)

	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
		WithParseMode(telego.ModeMarkdown).
		WithReplyMarkup(tu.InlineKeyboard(
			tu.InlineKeyboardRow(tu.InlineKeyboardButton("🔙 Back to Menu").WithCallbackData("main_menu")),
		)))
}

// sendAppLink hands out the download link. App access is granted lazily
// here on the first qualifying request rather than when the threshold is
// crossed.
func (b *Bot) sendAppLink(ctx context.Context, chatID int64, user *models.User) {
	if user.AppAccess || referral.AppEligible(user.ReferralCount) {
		if !user.AppAccess {
			if err := b.Ledger.GrantAppAccess(ctx, user.TelegramID); err != nil {
				log.Printf("Failed to grant app access for %d: %v", user.TelegramID, err)
				_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), "❌ Error occurred. Please try again."))
				return
			}
		}

		msg := fmt.Sprintf("🎉 *Congratulations! App Access Granted!*\n\n"+
			"📲 *Download Internet Sell App:*\n%s\n\n"+
			"📊 *Your Referrals:* %d\n"+
			"💵 *Referral Balance:* ₹%d\n"+
			"💸 *Withdrawal Access:* ✅ Available\n\n"+
			"🚀 Install the app and start selling internet today!",
			b.AppLink, user.ReferralCount, referral.Earnings(user.ReferralCount))

		_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).WithParseMode(telego.ModeMarkdown))
		return
	}

	remaining := referral.RemainingForUnlock(user.ReferralCount)
	msg := fmt.Sprintf("❌ *App Access Not Available Yet!*\n\n"+
		"📊 *Your Progress:* %d/%d referrals\n"+
		"🎯 *Remaining:* %d referrals needed\n\n"+
		"💡 Complete %d more referrals to get the app download link and withdrawal access.",
		user.ReferralCount, referral.UnlockThreshold, remaining, remaining)

	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
		WithParseMode(telego.ModeMarkdown).
		WithReplyMarkup(backKeyboard()))
}

// sendWithdrawPrompt checks the withdrawal preconditions and, when they
// hold, arms the UPI-input state for the next text message.
func (b *Bot) sendWithdrawPrompt(ctx context.Context, chatID int64, user *models.User) {
	if !user.WithdrawalAccess {
		remaining := referral.RemainingForUnlock(user.ReferralCount)
		msg := fmt.Sprintf("❌ *Withdrawal Access Not Available!*\n\n"+
			"📊 *Your Referrals:* %d/%d\n"+
			"🎯 *Remaining:* %d referrals needed\n\n"+
			"💰 *Current Balance:* ₹%d\n"+
			"💵 You'll earn ₹%d more from those referrals.",
			user.ReferralCount, referral.UnlockThreshold, remaining,
			user.Balance, referral.Earnings(remaining))
		_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
			WithParseMode(telego.ModeMarkdown).
			WithReplyMarkup(backKeyboard()))
		return
	}

	if user.Balance < referral.MinWithdrawal {
		msg := fmt.Sprintf("❌ *Insufficient Balance!*\n\n"+
			"💰 *Current Balance:* ₹%d\n"+
			"🎯 *Minimum Required:* ₹%d\n\n"+
			"💡 Complete more referrals to increase your balance — ₹%d per referral.",
			user.Balance, referral.MinWithdrawal, referral.RewardPerReferral)
		_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).
			WithParseMode(telego.ModeMarkdown).
			WithReplyMarkup(backKeyboard()))
		return
	}

	b.StatesMu.Lock()
	b.UserStates[chatID] = stateWaitingUPI
	b.StatesMu.Unlock()

	msg := fmt.Sprintf("💸 *Withdrawal Request*\n\n"+
		"💰 *Available Balance:* ₹%d\n"+
		"👥 *Total Referrals:* %d/%d ✅\n\n"+
		"📱 *Withdrawal Method:* UPI\n"+
		"• Minimum withdrawal: ₹%d\n"+
		"• Processed within 24 hours\n\n"+
		"📨 Please send your UPI ID (for example `name@okbank`).",
		user.Balance, user.ReferralCount, referral.UnlockThreshold, referral.MinWithdrawal)

	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).WithParseMode(telego.ModeMarkdown))
}

// settleWithdrawal runs the settlement and renders the outcome. Errors
// from the ledger map one-to-one onto user-visible messages; nothing is
// reported as done unless the store confirmed it.
func (b *Bot) settleWithdrawal(ctx context.Context, chatID int64, upiID string) {
	w, err := b.Ledger.SettleWithdrawal(ctx, chatID, upiID)
	if err != nil {
		var denied *referral.AccessDeniedError
		var insufficient *referral.InsufficientFundsError
		switch {
		case errors.As(err, &denied):
			_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID),
				fmt.Sprintf("❌ Withdrawal access not available!\nComplete %d more referrals to unlock withdrawal.", denied.Remaining)))
		case errors.As(err, &insufficient):
			_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID),
				fmt.Sprintf("❌ Insufficient balance for withdrawal!\nYour balance is ₹%d, minimum is ₹%d.", insufficient.Balance, insufficient.Minimum)))
		default:
			log.Printf("Failed to settle withdrawal for %d: %v", chatID, err)
			_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), "❌ Error occurred. Please try again."))
		}
		return
	}

	msg := fmt.Sprintf("✅ *Withdrawal Request Submitted!*\n\n"+
		"💰 *Amount:* ₹%d\n"+
		"📱 *UPI ID:* %s\n"+
		"⏰ *Processing:* Within 24 hours",
		w.Amount, w.Destination)
	_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), msg).WithParseMode(telego.ModeMarkdown))
}

// getUserOrComplain loads the user for read paths, prompting /start for
// first contact.
func (b *Bot) getUserOrComplain(ctx context.Context, chatID int64) *models.User {
	user, err := b.Ledger.GetUser(ctx, chatID)
	if errors.Is(err, referral.ErrNotFound) {
		_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), "👤 Profile not found. Please use /start first."))
		return nil
	}
	if err != nil {
		log.Printf("Failed to load user %d: %v", chatID, err)
		_, _ = b.Instance.SendMessage(ctx, tu.Message(tu.ID(chatID), "❌ Error occurred. Please try again."))
		return nil
	}
	return user
}

func (b *Bot) Start() {
	updates, _ := b.Instance.UpdatesViaLongPolling(context.Background(), nil)

	handler, _ := th.NewBotHandler(b.Instance, updates)

	// /start [referral code]
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		telegramID := message.From.ID

		args := ""
		if parts := strings.Split(message.Text, " "); len(parts) > 1 {
			args = parts[1]
		}

		user, err := b.registerUser(ctx.Context(), message.From)
		if err != nil {
			log.Printf("Failed to register user %d: %v", telegramID, err)
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "❌ Error occurred. Please try again."))
			return nil
		}

		if args != "" {
			res, err := b.Processor.Apply(ctx.Context(), telegramID, args)
			if err != nil {
				log.Printf("Referral processing failed for %d: %v", telegramID, err)
			} else if res.Outcome == referral.Accepted {
				log.Printf("Referral accepted: %d -> %d", res.ReferrerID, telegramID)
				b.notifyReferrer(ctx.Context(), res)
			}
		}

		if !user.JoinedChannel {
			b.sendJoinGate(ctx.Context(), message.Chat.ID)
		} else {
			b.sendMainMenu(ctx.Context(), message.Chat.ID, user)
		}
		return nil
	}, th.CommandEqual("start"))

	// /referral
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		if user := b.getUserOrComplain(ctx.Context(), telegramID); user != nil {
			b.sendReferralInfo(ctx.Context(), telegramID, user)
		}
		return nil
	}, th.CommandEqual("referral"))

	// /balance
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		if user := b.getUserOrComplain(ctx.Context(), telegramID); user != nil {
			b.sendBalance(ctx.Context(), telegramID, user)
		}
		return nil
	}, th.CommandEqual("balance"))

	// /app
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		if user := b.getUserOrComplain(ctx.Context(), telegramID); user != nil {
			b.sendAppLink(ctx.Context(), telegramID, user)
		}
		return nil
	}, th.CommandEqual("app"))

	// /withdraw [upi id]
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID

		args := ""
		if parts := strings.Fields(update.Message.Text); len(parts) > 1 {
			args = parts[1]
		}

		user := b.getUserOrComplain(ctx.Context(), telegramID)
		if user == nil {
			return nil
		}
		if args != "" {
			b.settleWithdrawal(ctx.Context(), telegramID, args)
		} else {
			b.sendWithdrawPrompt(ctx.Context(), telegramID, user)
		}
		return nil
	}, th.CommandEqual("withdraw"))

	// Channel join verification
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		telegramID := callback.From.ID

		if err := b.Ledger.SetJoinedChannel(ctx.Context(), telegramID); err != nil {
			log.Printf("Failed to verify join for %d: %v", telegramID, err)
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "❌ Error occurred. Please use /start first."))
			_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
			return nil
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
			"✅ *Channel Join Verified Successfully!*\n\nShare your referral link, earn ₹15 per friend, and unlock the app at 10 referrals. Use /referral to get started!").
			WithParseMode(telego.ModeMarkdown))

		if user := b.getUserOrComplain(ctx.Context(), telegramID); user != nil {
			b.sendMainMenu(ctx.Context(), telegramID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("verify_join"))

	// Main menu
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		if user := b.getUserOrComplain(ctx.Context(), callback.From.ID); user != nil {
			b.sendMainMenu(ctx.Context(), callback.From.ID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("main_menu"))

	// Referral info
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		if user := b.getUserOrComplain(ctx.Context(), callback.From.ID); user != nil {
			b.sendReferralInfo(ctx.Context(), callback.From.ID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("get_referral"))

	// Balance
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		if user := b.getUserOrComplain(ctx.Context(), callback.From.ID); user != nil {
			b.sendBalance(ctx.Context(), callback.From.ID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("check_balance"))

	// App link
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		if user := b.getUserOrComplain(ctx.Context(), callback.From.ID); user != nil {
			b.sendAppLink(ctx.Context(), callback.From.ID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("get_app_link"))

	// Withdrawal
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		if user := b.getUserOrComplain(ctx.Context(), callback.From.ID); user != nil {
			b.sendWithdrawPrompt(ctx.Context(), callback.From.ID, user)
		}
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("withdraw_earnings"))

	// Text input (UPI id after a withdrawal prompt)
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		telegramID := update.Message.From.ID
		text := strings.TrimSpace(update.Message.Text)

		b.StatesMu.RLock()
		state, ok := b.UserStates[telegramID]
		b.StatesMu.RUnlock()

		if !ok || state != stateWaitingUPI {
			return nil
		}

		if text == "" {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "❌ Please send a UPI ID."))
			return nil
		}

		b.settleWithdrawal(ctx.Context(), telegramID, text)

		b.StatesMu.Lock()
		delete(b.UserStates, telegramID)
		b.StatesMu.Unlock()

		return nil
	}, th.AnyMessageWithText())

	handler.Start()
}
