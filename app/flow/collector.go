// Package flow implements guided conversations collecting scam reports and account requests.
//
// Collector keeps one session per user. A scam session goes through three questions
// (scammer, incident, evidence), an account session starts with a platform selected from the menu
// and waits for a single "name, email, phone" answer. A completed session produces a Record and is removed.
// Scam sessions idle longer than the timeout are terminated by Expire, account sessions never expire.
package flow

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/umputun/tg-helpdesk/app/registry"
)

// DefaultTimeout is the inactivity window of scam sessions
const DefaultTimeout = 600 * time.Second

// Step is a position in a conversation, the step waits for user input
type Step string

// enum of all steps
const (
	StepIdle        Step = ""
	StepScammer     Step = "scammer"
	StepIncident    Step = "incident"
	StepEvidence    Step = "evidence"
	StepContactInfo Step = "contact-info"
)

// session errors
var (
	ErrNoSession       = errors.New("no active session")
	ErrSessionExpired  = errors.New("session expired")
	ErrUnexpectedSkip  = errors.New("skip is allowed only for evidence")
	ErrUnknownPlatform = errors.New("unknown platform")
)

// Result of a transition
type Result struct {
	Step   Step   // step waiting for the next input, StepIdle if the session is completed
	Record Record // completed record, nil until the last step
}

// Done returns true if the session has been completed
func (r Result) Done() bool { return r.Record != nil }

// Expired describes a session terminated by timeout
type Expired struct {
	User registry.User
	Step Step
	Idle time.Duration
}

// session is either *scamSession or *accountSession
type session interface {
	current() Step
	lastUpdate() time.Time
}

type scamSession struct {
	step    Step
	report  ScamReport
	updated time.Time
}

func (s *scamSession) current() Step         { return s.step }
func (s *scamSession) lastUpdate() time.Time { return s.updated }

type accountSession struct {
	request AccountRequest
	updated time.Time
}

func (s *accountSession) current() Step         { return StepContactInfo }
func (s *accountSession) lastUpdate() time.Time { return s.updated }

// Collector is a thread-safe state machine of all user sessions
type Collector struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu       sync.Mutex
	sessions map[int64]session
}

// NewCollector makes a Collector. Zero timeout means DefaultTimeout, nil clock is the real clock.
func NewCollector(clock clockwork.Clock, timeout time.Duration) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Collector{clock: clock, timeout: timeout, sessions: make(map[int64]session)}
}

// Timeout returns inactivity window of scam sessions
func (c *Collector) Timeout() time.Duration { return c.timeout }

// StartScam starts a new scam report for the user, any previous session of the user is dropped
func (c *Collector) StartScam(u registry.User) Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[u.ID] = &scamSession{step: StepScammer, report: ScamReport{User: u}, updated: c.clock.Now()}
	log.Printf("[DEBUG] scam report started by %v", u)
	return StepScammer
}

// StartAccount starts account request for the platform selected by the user
func (c *Collector) StartAccount(u registry.User, platformID string) (Platform, error) {
	platform, ok := PlatformByID(platformID)
	if !ok {
		return Platform{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platformID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[u.ID] = &accountSession{request: AccountRequest{User: u, Platform: platform}, updated: c.clock.Now()}
	log.Printf("[DEBUG] account request for %s started by %v", platform.ID, u)
	return platform, nil
}

// Step returns the step the user's session waits for, StepIdle if no session
func (c *Collector) Step(userID int64) Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		return StepIdle
	}
	return s.current()
}

// Input feeds user's text to the session.
// For rejected contact info the error is ErrTooFewFields or ErrInvalidEmail and the session is unchanged.
func (c *Collector) Input(userID int64, text string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active(userID)
	if err != nil {
		return Result{}, err
	}

	now := c.clock.Now()
	switch s := s.(type) {
	case *scamSession:
		answer := Answer{Text: text, At: now}
		s.updated = now
		switch s.step {
		case StepScammer:
			s.report.Scammer = answer
			s.step = StepIncident
		case StepIncident:
			s.report.Incident = answer
			s.step = StepEvidence
		case StepEvidence:
			s.report.Evidence = answer
			delete(c.sessions, userID)
			return Result{Step: StepIdle, Record: s.report}, nil
		}
		return Result{Step: s.step}, nil

	case *accountSession:
		info, perr := ParseContactInfo(text)
		if perr != nil {
			return Result{Step: StepContactInfo}, perr
		}
		req := s.request
		req.ContactName, req.Email, req.Phone = info.Name, info.Email, info.Phone
		delete(c.sessions, userID)
		return Result{Step: StepIdle, Record: req}, nil
	}
	return Result{}, fmt.Errorf("unsupported session type %T", s)
}

// Skip completes scam report without evidence
func (c *Collector) Skip(userID int64) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active(userID)
	if err != nil {
		return Result{}, err
	}
	scam, ok := s.(*scamSession)
	if !ok || scam.step != StepEvidence {
		return Result{Step: s.current()}, ErrUnexpectedSkip
	}
	scam.report.Evidence = Answer{Text: SkippedEvidence, At: c.clock.Now()}
	delete(c.sessions, userID)
	return Result{Step: StepIdle, Record: scam.report}, nil
}

// Cancel drops the user's session, returns false if there was nothing to cancel
func (c *Collector) Cancel(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[userID]; !ok {
		return false
	}
	delete(c.sessions, userID)
	return true
}

// Expire removes all scam sessions idle longer than the timeout and returns them
func (c *Collector) Expire() []Expired {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	res := []Expired{}
	for id, s := range c.sessions {
		scam, ok := s.(*scamSession)
		if !ok || !c.expired(scam, now) {
			continue
		}
		res = append(res, Expired{User: scam.report.User, Step: scam.step, Idle: now.Sub(scam.updated)})
		delete(c.sessions, id)
		log.Printf("[INFO] scam report of %v timed out at step %q", scam.report.User, scam.step)
	}
	return res
}

// Len returns number of active sessions
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// active returns session of the user, expired scam session is removed and reported as ErrSessionExpired.
// must be called under lock.
func (c *Collector) active(userID int64) (session, error) {
	s, ok := c.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	if scam, isScam := s.(*scamSession); isScam && c.expired(scam, c.clock.Now()) {
		delete(c.sessions, userID)
		return nil, ErrSessionExpired
	}
	return s, nil
}

func (c *Collector) expired(s *scamSession, now time.Time) bool {
	return now.Sub(s.updated) >= c.timeout
}
