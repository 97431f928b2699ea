package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"intersell-bot/internal/models"
	"intersell-bot/internal/payout"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Payouts periodically hands pending withdrawal records to the
// settlement provider and tells users when theirs went through.
type Payouts struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Client *payout.Client
	Bot    *telego.Bot
}

func NewPayouts(db *gorm.DB, rdb *redis.Client, client *payout.Client, bot *telego.Bot) *Payouts {
	return &Payouts{
		DB:     db,
		Redis:  rdb,
		Client: client,
		Bot:    bot,
	}
}

func (p *Payouts) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	log.Println("Background payout worker started")

	// Run once at start
	p.processPending()

	for range ticker.C {
		p.processPending()
	}
}

func (p *Payouts) processPending() {
	ctx := context.Background()

	log.Println("Running payout cycle...")

	var pending []models.Withdrawal
	if err := p.DB.Where("status = ?", "pending").Order("created_at").Find(&pending).Error; err != nil {
		log.Printf("Error querying pending withdrawals: %v", err)
		return
	}

	for _, w := range pending {
		ack, err := p.Client.Submit(&w)
		if err != nil {
			log.Printf("Failed to submit withdrawal %s: %v", w.ID, err)
			continue
		}
		if ack.Status == "failed" {
			log.Printf("Provider rejected withdrawal %s", w.ID)
			continue
		}

		now := time.Now()
		err = p.DB.Model(&models.Withdrawal{}).Where("id = ?", w.ID).
			Updates(map[string]interface{}{"status": "paid", "paid_at": now}).Error
		if err != nil {
			log.Printf("Failed to mark withdrawal %s paid: %v", w.ID, err)
			continue
		}

		// Redis key guards the notification: if a previous cycle died
		// between the update and the message, we still message at most once.
		key := fmt.Sprintf("payout_notified_%s", w.ID)
		exists, _ := p.Redis.Exists(ctx, key).Result()
		if exists != 0 {
			continue
		}

		_, err = p.Bot.SendMessage(ctx, tu.Message(
			tu.ID(w.UserID),
			fmt.Sprintf("✅ Your withdrawal of ₹%d to %s has been processed!", w.Amount, w.Destination),
		))
		if err == nil {
			p.Redis.Set(ctx, key, "true", 48*time.Hour)
			log.Printf("Paid withdrawal %s for user %d", w.ID, w.UserID)
		} else {
			log.Printf("Failed to send payout notification to %d: %v", w.UserID, err)
		}
	}
}
