package notifier

import (
	"context"
	"log"
	"strings"
	"time"

	"BCRPSentinel/internal/backoff"
)

const (
	// pollTimeout is the getUpdates long-poll window.
	pollTimeout = 25 * time.Second
	maxPollWait = 30 * time.Second
)

// CommandHandler answers a chat command. An empty reply sends nothing.
type CommandHandler func(command string) string

type update struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
	} `json:"message"`
}

// StartPolling long-polls for chat commands until ctx is cancelled. Failed
// polls back off exponentially up to maxPollWait.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	if !t.Enabled() {
		log.Println("[INFO] Telegram disabled, command polling not started")
		return
	}
	offset, failures := 0, 0
	for ctx.Err() == nil {
		var updates []update
		err := t.call(ctx, "getUpdates", map[string]int{
			"offset":  offset,
			"timeout": int(pollTimeout / time.Second),
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := min(backoff.Exponential(time.Second, failures), maxPollWait)
			failures++
			log.Printf("[WARN] polling failed: %v, retrying in %v", err, wait)
			if backoff.Sleep(ctx, wait) != nil {
				break
			}
			continue
		}
		failures = 0

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			cmd := strings.TrimSpace(u.Message.Text)
			if cmd == "" {
				continue
			}
			log.Printf("[INFO] received command: %s", cmd)
			if reply := handler(cmd); reply != "" {
				if err := t.SendContext(ctx, reply); err != nil {
					log.Printf("[ERROR] send reply: %v", err)
				}
			}
		}
	}
	log.Println("[INFO] Telegram polling stopped")
}
