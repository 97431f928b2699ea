package main

import (
	"log"

	"intersell-bot/internal/bot"
	"intersell-bot/internal/config"
	"intersell-bot/internal/database"
	"intersell-bot/internal/payout"
	"intersell-bot/internal/referral"
	"intersell-bot/internal/store"
	"intersell-bot/internal/worker"

	"gorm.io/gorm"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	// Pick the ledger backend
	var ledger referral.Ledger
	var db *gorm.DB
	if cfg.StorageDriver == "memory" {
		log.Println("Using in-memory storage (state is lost on restart)")
		ledger = store.NewMemory()
	} else {
		var err error
		db, err = database.ConnectPostgres(cfg)
		if err != nil {
			log.Fatalf("Could not connect to database: %v", err)
		}
		ledger = store.NewGorm(db)
	}

	processor := referral.NewProcessor(ledger)
	tgBot, err := bot.NewBot(cfg.BotToken, ledger, processor, cfg.ChannelLink, cfg.AppDownloadLink)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}

	// Payout worker needs durable withdrawals; skipped in memory mode.
	if db != nil {
		rdb, err := database.ConnectRedis(cfg)
		if err != nil {
			log.Fatalf("Could not connect to redis: %v", err)
		}

		payoutClient := payout.NewClient(cfg.PayoutAPIURL, cfg.PayoutAPIKey)
		payouts := worker.NewPayouts(db, rdb, payoutClient, tgBot.Instance)
		go payouts.Start()
	}

	log.Println("Service started successfully")
	tgBot.Start()
}
