// Package registry keeps track of users who talked to the bot.
// Two sets are maintained: users who ever interacted with the bot in any way and users who ever sent /start.
// The interacted set is the audience of promotional broadcasts and shrinks when delivery to a user fails,
// the started set only grows and is used to detect first-time users.
package registry

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// User is a telegram user as seen by the bot
type User struct {
	ID          int64
	DisplayName string
	Username    string // optional, without "@"
}

func (u User) String() string {
	if u.Username == "" {
		return fmt.Sprintf("%q (%d)", u.DisplayName, u.ID)
	}
	return fmt.Sprintf("%q @%s (%d)", u.DisplayName, u.Username, u.ID)
}

// Stats is a snapshot of registry counters
type Stats struct {
	Started    int `json:"started"`
	Interacted int `json:"interacted"`
}

// Report returns human-readable statistics message stamped with ts
func (s Stats) Report(ts time.Time) string {
	return fmt.Sprintf("📊 BOT INTERACTION STATISTICS\n\n"+
		"• Total Users Started: %d\n"+
		"• Active Users Interacted: %d\n\n"+
		"Last updated: %s", s.Started, s.Interacted, ts.Format(time.DateTime))
}

// Registry is an in-memory, thread-safe set of tracked users
type Registry struct {
	mu         sync.RWMutex
	interacted map[int64]struct{}
	started    map[int64]struct{}
	profiles   map[int64]User
}

// New makes an empty Registry
func New() *Registry {
	return &Registry{
		interacted: make(map[int64]struct{}),
		started:    make(map[int64]struct{}),
		profiles:   make(map[int64]User),
	}
}

// TrackInteraction adds user to the interacted set and refreshes the stored profile.
// Calling it many times is the same as calling it once.
func (r *Registry) TrackInteraction(u User) {
	if u.ID == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interacted[u.ID] = struct{}{}
	r.profiles[u.ID] = u
	log.Printf("[DEBUG] tracked user interaction: %d", u.ID)
}

// TrackStart adds user to both started and interacted sets.
// Returns true only for the very first start of the user.
func (r *Registry) TrackStart(u User) (first bool) {
	if u.ID == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interacted[u.ID] = struct{}{}
	r.profiles[u.ID] = u
	if _, ok := r.started[u.ID]; ok {
		return false
	}
	r.started[u.ID] = struct{}{}
	log.Printf("[INFO] new user started: %v", u)
	return true
}

// Remove drops users from the interacted set. The started set is not touched,
// so a removed user coming back with /start is not reported as new again.
func (r *Registry) Remove(ids ...int64) {
	if len(ids) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.interacted, id)
	}
}

// Interacted returns sorted ids of all users in the interacted set
func (r *Registry) Interacted() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]int64, 0, len(r.interacted))
	for id := range r.interacted {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// User returns the last seen profile of the user
func (r *Registry) User(id int64) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.profiles[id]
	return u, ok
}

// Stats returns current counters
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Started: len(r.started), Interacted: len(r.interacted)}
}
