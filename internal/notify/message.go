// Package notify renders lifecycle notifications for access requests and
// delivers them to a chat service.
package notify

const (
	ActionApprove = "approve_access_request"
	ActionDeny    = "deny_access_request"
)

// Button styles understood by chat backends.
const (
	StylePrimary = "primary"
	StyleDanger  = "danger"
)

// Action is one button of an interactive message. Value is opaque to the
// chat service and is handed back when the button is clicked.
type Action struct {
	ID    string
	Label string
	Value string
	Style string
}

// Interactive is the structured part of a message.
type Interactive struct {
	Actions []Action
}

// Message is a rendered notification.
type Message struct {
	Text        string
	Interactive *Interactive
}
