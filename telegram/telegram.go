package telegram

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"stylistapi/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

var usernames string = os.Getenv("TG_ADMINS") //separated by comma from env

func EscapeMessage(message string) string {
	r := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return r.Replace(message)
}

func isAdmin(userName string) bool {
	for _, admin := range strings.Split(usernames, ",") {
		if strings.TrimSpace(admin) == userName {
			return true
		}
	}
	return false
}

// RunAdminBot serves operational stats to the admins listed in TG_ADMINS.
func RunAdminBot(e *echo.Echo, db *gorm.DB) {

	bot, err := tgbotapi.NewBotAPI(os.Getenv("TG_TOKEN"))
	if err != nil {
		println("Error tg bot init")
		log.Panic(err)
	}
	bot.Debug = true

	log.Printf("Authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if !isAdmin(update.Message.From.UserName) {
			fmt.Println("Ignoring non-admin message from ", update.Message.From.UserName)
			continue
		}
		log.Printf("[%s] %s", update.Message.From.UserName, update.Message.Text)
		switch update.Message.Command() {
		case "start":
			msg := tgbotapi.NewMessage(update.Message.Chat.ID, "Commands:\n/stats - totals\n/today - signups and items today")
			bot.Send(msg)
		case "stats":
			var userCount, itemCount, outfitCount int64
			db.Model(&models.UserAccount{}).Count(&userCount)
			db.Model(&models.WardrobeItem{}).Count(&itemCount)
			db.Model(&models.SavedOutfit{}).Count(&outfitCount)
			msg := tgbotapi.NewMessage(update.Message.Chat.ID,
				fmt.Sprintf("Users: %v\nWardrobe items: %v\nSaved outfits: %v", userCount, itemCount, outfitCount))
			bot.Send(msg)
		case "today":
			today := time.Now().UTC().Format("2006-01-02")
			var userCount, itemCount int64
			db.Model(&models.UserAccount{}).Where("DATE(created_at) = ?", today).Count(&userCount)
			db.Model(&models.WardrobeItem{}).Where("DATE(created_at) = ?", today).Count(&itemCount)
			msg := tgbotapi.NewMessage(update.Message.Chat.ID,
				fmt.Sprintf("Signups today: %v\nItems added today: %v", userCount, itemCount))
			bot.Send(msg)
		}
	}
}
