package broadcast

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// SupportPlaceholder in promotional messages is replaced with the support username
const SupportPlaceholder = "{support_username}"

// separator line between messages in promo file
const separator = "---"

var defaultMessages = []string{
	"🚨 FLASH OFFER! 40% reload bonus - 12hrs ONLY! Deposit NOW! 🔥\n\n" +
		"⚡ Instant cashouts! Win → Cash in SECONDS! 💨\n\n" +
		"💬 Problems? Questions? Message @{support_username} now!",

	"🎉 100% SIGNUP BONUS! Double your start + instant cashouts! ⚡\n\n" +
		"⚡ Instant cashouts! Win → Cash in SECONDS! 💨\n\n" +
		"💬 Problems? Need help? Contact @{support_username}!",

	"🛡️ 15% WEEKLY CASHBACK! Lose? We soften the blow! 💸\n\n" +
		"⚡ Instant cashouts! Win → Cash in SECONDS! 💨\n\n" +
		"💬 Problems? Assistance? DM @{support_username}!",

	"👥 50% REFERRAL BONUS! Earn $$$ when friends play! 🎁\n\n" +
		"Instant cashouts! Win → Cash in SECONDS! 💨\n\n" +
		"💬 Problems? Support? Message @{support_username}!",

	"🎮 HOT GAMES: Orion Stars, FireKirin, Juwa, Vegas! 🔥\n\n" +
		"⚡ Instant cashouts! Win → Cash in SECONDS! 💨\n\n" +
		"💬 Problems? Issues? Contact @{support_username}!",

	"🏆 PLAY CONSISTENTLY! Deposit often → Win more → Cashout BIG! 💰\n\n" +
		"💬 Help? Message @{support_username}!",
}

// Pool is a thread-safe list of promotional messages
type Pool struct {
	support string

	mu       sync.RWMutex
	messages []string
}

// NewPool makes pool with built-in messages formatted for the support username
func NewPool(supportUsername string) *Pool {
	res := &Pool{support: supportUsername}
	res.messages = res.expand(defaultMessages)
	return res
}

// Load replaces messages with entries from the reader. Entries are separated by "---" lines,
// empty entries are ignored. If no entries found the pool is left unchanged.
func (p *Pool) Load(r io.Reader) error {
	var msgs []string
	var entry strings.Builder
	flush := func() {
		if s := strings.TrimSpace(entry.String()); s != "" {
			msgs = append(msgs, s)
		}
		entry.Reset()
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == separator {
			flush()
			continue
		}
		entry.WriteString(line)
		entry.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read promo messages: %w", err)
	}
	flush()

	if len(msgs) == 0 {
		return errors.New("no promo messages found")
	}

	p.mu.Lock()
	p.messages = p.expand(msgs)
	p.mu.Unlock()
	log.Printf("[INFO] loaded %d promo messages", len(msgs))
	return nil
}

// Watch loads messages from the file and reloads them on every change until ctx is canceled
func (p *Pool) Watch(ctx context.Context, path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	if err = p.Load(data); err != nil {
		return fmt.Errorf("can't load %s: %w", path, err)
	}
	return watch(ctx, path, p.Load)
}

// Len returns number of messages
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

// At returns message by index, the index wraps around the pool size
func (p *Pool) At(idx int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[idx%len(p.messages)]
}

// Random returns a random message
func (p *Pool) Random() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[rand.IntN(len(p.messages))] //nolint:gosec // no need for crypto here
}

func (p *Pool) expand(msgs []string) []string {
	res := make([]string, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, strings.ReplaceAll(m, SupportPlaceholder, p.support))
	}
	return res
}

// watch calls onDataChange with the new content of the file on every write
func watch(ctx context.Context, path string, onDataChange func(io.Reader) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err = watcher.Add(path); err != nil {
		return fmt.Errorf("failed to add %s to watcher: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] stopping watcher for %s, %v", path, ctx.Err())
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			data, e := readFile(path)
			if e != nil {
				log.Printf("[WARN] failed to read updated file %s: %v", path, e)
				continue
			}
			if e = onDataChange(data); e != nil {
				log.Printf("[WARN] failed to load updated file %s: %v", path, e)
			}
		case e, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] watcher error: %v", e)
		}
	}
}

func readFile(path string) (io.Reader, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is controlled by the app
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return bytes.NewReader(data), nil
}
