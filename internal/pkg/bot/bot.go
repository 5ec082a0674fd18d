package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2/log"

	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/dispatcher"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/subscription"
)

const (
	welcomeText = "Welcome! Use /subscribe to join the premium group or /cancel to end your subscription."
	notSubText  = "No active subscription found for your account."
	cancelText  = "Your subscription will end at the close of the current billing period. You keep access until then."
	failText    = "Something went wrong, please try again later."
)

// CheckoutCreator produces a hosted checkout link for one chat user.
type CheckoutCreator interface {
	CreateCheckoutLink(ctx context.Context, correlationKey, priceID, successURL, cancelURL string) (string, error)
}

// Connect authenticates against the chat platform and returns the API
// handle shared by the runtime and the actuator.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect bot: %w", err)
	}
	log.Infof("[Bot] Authorized as @%s", api.Self.UserName)
	return api, nil
}

// CheckoutConfig carries the checkout parameters the /subscribe command
// needs.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Runtime owns the single goroutine on which all chat-client calls and all
// dispatched billing jobs execute. Webhook handlers never touch the chat
// client directly; they Submit to the dispatcher and this loop drains it.
type Runtime struct {
	api      *tgbotapi.BotAPI
	disp     *dispatcher.Dispatcher
	subs     *subscription.Service
	checkout CheckoutCreator
	cfg      CheckoutConfig

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewRuntime(api *tgbotapi.BotAPI, disp *dispatcher.Dispatcher, subs *subscription.Service, checkout CheckoutCreator, cfg CheckoutConfig) *Runtime {
	return &Runtime{
		api:      api,
		disp:     disp,
		subs:     subs,
		checkout: checkout,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the runtime goroutine. It starts the dispatcher before the
// loop so webhook submissions are accepted from the first request onward.
func (r *Runtime) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := r.api.GetUpdatesChan(u)

	r.disp.Start()

	go func() {
		defer close(r.doneCh)
		log.Info("[Bot] Runtime loop started")
		for {
			select {
			case <-r.stopCh:
				// Close the queue first so a concurrent Submit is logged as
				// dropped rather than silently stranded, then drain what was
				// accepted before the stop.
				r.disp.Stop()
				n := r.disp.RunPending(ctx)
				if n > 0 {
					log.Infof("[Bot] Drained %d pending jobs on shutdown", n)
				}
				log.Info("[Bot] Runtime loop stopped")
				return
			case update := <-updates:
				r.handleUpdate(ctx, update)
			case <-r.disp.Wake():
				r.disp.RunPending(ctx)
			}
		}
	}()
}

// Stop ends the update stream, drains queued jobs and waits for the runtime
// goroutine to exit.
func (r *Runtime) Stop() {
	r.api.StopReceivingUpdates()
	close(r.stopCh)
	<-r.doneCh
}

func (r *Runtime) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	chatID := update.Message.Chat.ID
	key := strconv.FormatInt(update.Message.From.ID, 10)

	switch update.Message.Command() {
	case "start":
		msg := tgbotapi.NewMessage(chatID, welcomeText)
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/subscribe"),
				tgbotapi.NewKeyboardButton("/cancel"),
			),
		)
		r.send(msg)

	case "subscribe":
		url, err := r.checkout.CreateCheckoutLink(ctx, key, r.cfg.PriceID, r.cfg.SuccessURL, r.cfg.CancelURL)
		if err != nil {
			log.Errorf("[Bot] Checkout link for user %s failed: %v", key, err)
			r.send(tgbotapi.NewMessage(chatID, failText))
			return
		}
		r.send(tgbotapi.NewMessage(chatID, "Complete your subscription here: "+url))

	case "cancel":
		err := r.subs.RequestCancel(ctx, key)
		switch {
		case errors.Is(err, subscription.ErrNotSubscribed):
			r.send(tgbotapi.NewMessage(chatID, notSubText))
		case err != nil:
			log.Errorf("[Bot] Cancel request for user %s failed: %v", key, err)
			r.send(tgbotapi.NewMessage(chatID, failText))
		default:
			r.send(tgbotapi.NewMessage(chatID, cancelText))
		}
	}
}

func (r *Runtime) send(msg tgbotapi.MessageConfig) {
	if _, err := r.api.Send(msg); err != nil {
		log.Errorf("[Bot] Send to chat %d failed: %v", msg.ChatID, err)
	}
}
