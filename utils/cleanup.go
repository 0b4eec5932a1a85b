package utils

import (
	"log"
	"os"
	"time"

	"github.com/expo25/eventpass/config"
	"github.com/expo25/eventpass/models"
)

// StartShareCleaner launches a background goroutine that periodically deletes
// expired published certificate PNGs recorded in the database. It is
// best-effort and logs failures.
func StartShareCleaner(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			db := config.DB()
			if db == nil {
				continue
			}
			var items []models.SharedCertificate
			if err := db.Where("expire_at <= ?", time.Now()).Limit(100).Find(&items).Error; err != nil {
				log.Printf("share cleaner query failed: %v", err)
				continue
			}
			for _, it := range items {
				if it.FilePath != "" {
					_ = os.Remove(it.FilePath)
				}
				// Remove row regardless of file deletion outcome
				if err := db.Delete(&models.SharedCertificate{}, it.ID).Error; err != nil {
					log.Printf("share cleaner delete failed id=%d: %v", it.ID, err)
				}
			}
		}
	}()
}
