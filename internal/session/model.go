package session

import "time"

// Status is the position of a session in the login state machine.
type Status string

const (
	// StatusPending is the state of a freshly created session waiting for the provider callback.
	StatusPending Status = "pending"
	// StatusExchanging means a callback claimed the session and is talking to the provider.
	StatusExchanging Status = "exchanging"
	// StatusCompleted means the code was exchanged and the token awaits pickup.
	StatusCompleted Status = "completed"
	// StatusFailed means the callback arrived but no token could be obtained.
	StatusFailed Status = "failed"
)

// Session tracks a single login attempt relayed for a polling client.
// Token is set if and only if Status is StatusCompleted.
type Session struct {
	ID            string    // Session ID, carried through the provider in the state parameter
	Status        Status    // Current position in the state machine
	Token         string    // ID token obtained from the provider
	PKCEVerifier  string    // PKCE verifier sent with the code exchange
	FailureReason string    // Server side reason for StatusFailed; never exposed to clients
	CreatedAt     time.Time // Creation time; the session expires a fixed TTL later
}

// LoginStart is what a client needs to drive the browser leg of the flow.
type LoginStart struct {
	SessionID string
	AuthURL   string
}
