package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/johnnybasgallop/DMOTelegramBot/app/controllers"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/actuator"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/bot"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/cache"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/database"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/dispatcher"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/env"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/ledger"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/payment"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/router"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/subscription"
)

func main() {
	app, runtime := NewApplication()

	runtime.Start(context.Background())

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
		if err := app.Listen(addr); err != nil {
			log.Errorf("[Main] HTTP server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Stop accepting webhooks first so no new jobs are submitted, then let
	// the runtime drain what is queued.
	log.Info("[Main] Shutting down")
	if err := app.Shutdown(); err != nil {
		log.Errorf("[Main] HTTP shutdown failed: %v", err)
	}
	runtime.Stop()
	log.Info("[Main] Bye")
}

func NewApplication() (*fiber.App, *bot.Runtime) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	stripeClient, err := payment.NewStripeClientFromEnv()
	if err != nil {
		log.Fatalf("[Main] Payment client: %v", err)
	}

	led := setupLedger()

	api, err := bot.Connect(env.GetEnv("TELEGRAM_BOT_TOKEN", ""))
	if err != nil {
		log.Fatalf("[Main] Bot: %v", err)
	}

	groupID := int64(env.GetEnvInt("TELEGRAM_GROUP_ID", 0))
	if groupID == 0 {
		log.Fatal("[Main] TELEGRAM_GROUP_ID is not set")
	}

	act := actuator.New(
		actuator.NewTelegramChatClient(api),
		actuator.NewRedisLinkCache(),
		groupID,
		env.GetEnvBool("INVITE_REUSE_LINKS", false),
		time.Duration(env.GetEnvInt("INVITE_TTL_MINUTES", 1440))*time.Minute,
	)

	repo := subscription.NewRepository(database.GetDB())
	svc := subscription.NewService(led, act, stripeClient, repo, env.GetEnv("STRIPE_PRICE_ID", ""))

	disp := dispatcher.New()
	runtime := bot.NewRuntime(api, disp, svc, stripeClient, bot.CheckoutConfig{
		PriceID:    env.GetEnv("STRIPE_PRICE_ID", ""),
		SuccessURL: env.GetEnv("CHECKOUT_SUCCESS_URL", "https://t.me"),
		CancelURL:  env.GetEnv("CHECKOUT_CANCEL_URL", "https://t.me"),
	})

	parser := payment.NewEventParser(stripeClient)
	tolerance := time.Duration(env.GetEnvInt("WEBHOOK_TOLERANCE_SECONDS", 600)) * time.Second
	webhook := controllers.NewWebhookController(
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		tolerance,
		parser,
		repo,
		disp,
		svc,
	)

	app := fiber.New(fiber.Config{
		AppName: "dmo-telegram-bot",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, webhook)

	return app, runtime
}

// setupLedger prefers the spreadsheet ledger and falls back to the in-memory
// one when credentials are absent, so local runs work without Google access.
func setupLedger() ledger.Ledger {
	sheetID := env.GetEnv("SHEET_ID", "")
	credFile := env.GetEnv("GOOGLE_CREDENTIALS_FILE", "")
	if sheetID == "" || credFile == "" {
		log.Warn("[Main] SHEET_ID or GOOGLE_CREDENTIALS_FILE missing, using in-memory ledger")
		return ledger.NewMemoryLedger()
	}

	led, err := ledger.NewSheetsLedger(context.Background(), credFile, sheetID, env.GetEnv("SHEET_NAME", "Sheet1"))
	if err != nil {
		log.Fatalf("[Main] Sheets ledger: %v", err)
	}
	return led
}
