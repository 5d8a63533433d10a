// Package broadcast pushes promotional messages to tracked users.
//
// Broadcaster sends the next message of the pool to every tracked user and waits a random interval
// before the next cycle. Promoter sends a random message to a single random user, run by Jobs.
// Users who can't receive a message are removed from the registry.
package broadcast

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	tbapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/jonboulle/clockwork"
)

//go:generate moq --out mocks/tb_api.go --pkg mocks --with-resets --skip-ensure . TbAPI

// TbAPI is a subset of telegram bot API used to send promotions
type TbAPI interface {
	Send(c tbapi.Chattable) (tbapi.Message, error)
}

// Users provides tracked users and removes unreachable ones
type Users interface {
	Interacted() []int64
	Remove(ids ...int64)
}

// defaults of broadcaster params
const (
	DefaultPace         = 100 * time.Millisecond
	DefaultMinDelay     = time.Hour
	DefaultMaxDelay     = 4 * time.Hour
	DefaultInitialDelay = 30 * time.Second
)

// Params of Broadcaster, zero delays replaced by defaults, zero Pace disables pacing
type Params struct {
	TbAPI        TbAPI
	Users        Users
	Pool         *Pool
	SupportURL   string
	Pace         time.Duration // delay between sends in a cycle
	MinDelay     time.Duration // lower bound of the interval between cycles
	MaxDelay     time.Duration // upper bound of the interval between cycles
	InitialDelay time.Duration // delay before the first cycle
	Clock        clockwork.Clock
}

// PromotionState is the state of the broadcast rotation
type PromotionState struct {
	Index    int           `json:"index"`
	Active   bool          `json:"active"`
	MinDelay time.Duration `json:"min_delay"`
	MaxDelay time.Duration `json:"max_delay"`
	LastSent time.Time     `json:"last_sent"`
}

// Cycle is the outcome of a broadcast cycle
type Cycle struct {
	Sent    int
	Failed  int
	Skipped bool          // nothing was sent, broadcaster inactive or no users
	Next    time.Duration // delay before the next cycle
}

// Broadcaster sends promotional messages to all tracked users
type Broadcaster struct {
	Params

	mu    sync.Mutex
	state PromotionState
}

// NewBroadcaster makes active broadcaster starting from the first message of the pool
func NewBroadcaster(params Params) *Broadcaster {
	res := &Broadcaster{Params: params}
	if res.Clock == nil {
		res.Clock = clockwork.NewRealClock()
	}
	if res.Pace < 0 {
		res.Pace = 0
	}
	if res.MinDelay <= 0 {
		res.MinDelay = DefaultMinDelay
	}
	if res.MaxDelay < res.MinDelay {
		res.MaxDelay = max(DefaultMaxDelay, res.MinDelay)
	}
	if res.InitialDelay <= 0 {
		res.InitialDelay = DefaultInitialDelay
	}
	res.state = PromotionState{Active: true, MinDelay: res.MinDelay, MaxDelay: res.MaxDelay}
	return res
}

// Run waits the initial delay and repeats broadcast cycles until ctx is canceled.
// Every cycle, including skipped one, schedules exactly one next cycle.
func (b *Broadcaster) Run(ctx context.Context) error {
	log.Printf("[INFO] broadcaster started, first cycle in %v", b.InitialDelay)
	wait := b.InitialDelay
	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] broadcaster stopped, %v", ctx.Err())
			return ctx.Err()
		case <-b.Clock.After(wait):
		}
		cycle := b.RunCycle(ctx)
		wait = cycle.Next
		log.Printf("[INFO] next broadcast in %v", wait.Round(time.Minute))
	}
}

// RunCycle sends the current message to every tracked user, removes users failed to receive it
// and advances the rotation. Returns the delay before the next cycle.
func (b *Broadcaster) RunCycle(ctx context.Context) Cycle {
	b.mu.Lock()
	active, idx := b.state.Active, b.state.Index
	b.mu.Unlock()

	res := Cycle{Next: b.nextDelay()}
	users, size := b.Users.Interacted(), b.Pool.Len()
	if !active || len(users) == 0 || size == 0 {
		log.Printf("[DEBUG] broadcast skipped, active: %v, users: %d", active, len(users))
		res.Skipped = true
		return res
	}

	text := offer(b.Pool.At(idx), b.SupportURL)
	failed := []int64{}
	for i, id := range users {
		if ctx.Err() != nil {
			log.Printf("[WARN] broadcast interrupted after %d of %d users", i, len(users))
			break
		}
		if _, err := b.TbAPI.Send(tbapi.NewMessage(id, text)); err != nil {
			log.Printf("[WARN] failed broadcast to %d: %v", id, err)
			failed = append(failed, id)
			continue
		}
		log.Printf("[DEBUG] broadcast sent to %d", id)
		res.Sent++
		if b.Pace > 0 && i < len(users)-1 {
			select {
			case <-ctx.Done():
			case <-b.Clock.After(b.Pace):
			}
		}
	}
	res.Failed = len(failed)
	b.Users.Remove(failed...)

	b.mu.Lock()
	b.state.Index = (idx + 1) % size
	b.state.LastSent = b.Clock.Now()
	b.mu.Unlock()
	log.Printf("[INFO] completed broadcast cycle, sent: %d, failed: %d, next message: %d", res.Sent, res.Failed, (idx+1)%size)
	return res
}

// SetActive turns broadcasting on or off
func (b *Broadcaster) SetActive(active bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Active = active
}

// State returns a copy of the rotation state
func (b *Broadcaster) State() PromotionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// nextDelay returns random duration in [MinDelay, MaxDelay]
func (b *Broadcaster) nextDelay() time.Duration {
	if b.MaxDelay <= b.MinDelay {
		return b.MinDelay
	}
	return b.MinDelay + rand.N(b.MaxDelay-b.MinDelay+1) //nolint:gosec // no need for crypto here
}

// Promoter sends a random promotional message to a random user
type Promoter struct {
	TbAPI      TbAPI
	Users      Users
	Pool       *Pool
	SupportURL string
}

// SendRandom sends one random message to one random user, the user is removed on failure.
// Does nothing if there are no tracked users.
func (p *Promoter) SendRandom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	users := p.Users.Interacted()
	if len(users) == 0 || p.Pool.Len() == 0 {
		log.Printf("[DEBUG] no users for promotion")
		return nil
	}
	id := users[rand.IntN(len(users))] //nolint:gosec // no need for crypto here
	if _, err := p.TbAPI.Send(tbapi.NewMessage(id, offer(p.Pool.Random(), p.SupportURL))); err != nil {
		p.Users.Remove(id)
		return fmt.Errorf("failed to send promotion to %d: %w", id, err)
	}
	log.Printf("[INFO] sent promotional message to user %d", id)
	return nil
}

func offer(msg, supportURL string) string {
	return fmt.Sprintf("🎉 SPECIAL OFFER 🎉\n\n%s\n\n%s", msg, supportURL)
}
