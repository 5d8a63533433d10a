package flow

import (
	"time"

	"github.com/umputun/tg-helpdesk/app/registry"
)

// Kind of the record, used in relay headers and moderation callbacks
type Kind string

// enum of record kinds
const (
	KindScam    Kind = "SCAM"
	KindAccount Kind = "ACCOUNT"
)

// SkippedEvidence is stored as evidence when user sends /skip
const SkippedEvidence = "No evidence provided"

// Record is a completed submission, ScamReport or AccountRequest
type Record interface {
	Kind() Kind
	Submitter() registry.User
}

// Answer is a verbatim user answer with the time it was received
type Answer struct {
	Text string
	At   time.Time
}

// ScamReport collected by the scam flow
type ScamReport struct {
	User     registry.User
	Scammer  Answer
	Incident Answer
	Evidence Answer
}

// Kind returns KindScam
func (r ScamReport) Kind() Kind { return KindScam }

// Submitter returns the user who filed the report
func (r ScamReport) Submitter() registry.User { return r.User }

// AccountRequest collected by the account flow
type AccountRequest struct {
	User        registry.User
	Platform    Platform
	ContactName string
	Email       string
	Phone       string
}

// Kind returns KindAccount
func (r AccountRequest) Kind() Kind { return KindAccount }

// Submitter returns the user who requested the account
func (r AccountRequest) Submitter() registry.User { return r.User }

// Platform is a gaming platform an account can be requested for
type Platform struct {
	ID    string // used in callback data
	Title string
}

// Platforms lists all supported platforms in menu order
var Platforms = []Platform{
	{ID: "OrionStars", Title: "Orion Stars"},
	{ID: "Firekirin", Title: "FireKirin"},
	{ID: "Vegas", Title: "Vegas"},
	{ID: "Juwa", Title: "Juwa"},
	{ID: "PandaMaster", Title: "PandaMaster"},
	{ID: "UltraPanda", Title: "Ultra Panda"},
	{ID: "GameVault", Title: "GameVault"},
	{ID: "VBlink", Title: "VBlink"},
}

// PlatformByID finds platform by its id
func PlatformByID(id string) (Platform, bool) {
	for _, p := range Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}
