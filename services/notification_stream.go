package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"job-board-growth/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// NotificationStream pushes newly stored notifications to a user over SSE
type NotificationStream struct {
	DB       *gorm.DB
	Interval time.Duration
}

func NewNotificationStream(db *gorm.DB) *NotificationStream {
	return &NotificationStream{DB: db, Interval: 2 * time.Second}
}

// latestCursor is the created_at of the user's newest notification, zero when none
func (s *NotificationStream) latestCursor(ctx context.Context, userID string) (time.Time, error) {
	var latest models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest.CreatedAt, nil
}

// since returns the user's notifications created after cursor, oldest first
func (s *NotificationStream) since(ctx context.Context, userID string, cursor time.Time) ([]models.Notification, error) {
	var out []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, cursor).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// Stream serves text/event-stream for the user in c.Locals("user_id")
func (s *NotificationStream) Stream(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	reqCtx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		cursor, err := s.latestCursor(ctx, userID)
		if err != nil {
			log.Printf("❌ [SSE] Cursor init failed for %s: %v", userID, err)
		}

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				fresh, err := s.since(ctx, userID, cursor)
				if err != nil {
					log.Printf("❌ [SSE] Query failed for %s: %v", userID, err)
					continue
				}
				if len(fresh) == 0 {
					// keepalive doubles as disconnect detection
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}
				cursor = fresh[len(fresh)-1].CreatedAt
				for _, n := range fresh {
					payload, _ := json.Marshal(n)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, payload)
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-reqCtx.Done():
				return
			}
		}
	})
	return nil
}
