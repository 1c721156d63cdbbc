package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/challenge"
	"github.com/socialvoid/svclient/identity"
	"github.com/socialvoid/svclient/internal/logutil"
	"github.com/socialvoid/svclient/rpc"
)

// State is the lifecycle state of a session.
type State int

const (
	// StateUnestablished means the server has not issued a session yet.
	StateUnestablished State = iota

	// StateEstablished means the server issued a session and challenge
	// but no user is logged in.
	StateEstablished

	// StateAuthenticated means a user is logged in within the session.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnestablished:
		return "unestablished"
	case StateEstablished:
		return "established"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// RegisterRequest holds the account details of a new user.
type RegisterRequest struct {
	Username  string
	Password  string
	FirstName string
	LastName  *string
}

// Holder tracks the state of a single server session. All of its methods are
// safe for concurrent use. Operations that change the state hold the
// session lock for their full duration, including the remote call.
type Holder struct {
	baseLog slog.Logger
	now     func() time.Time

	mtx           sync.Mutex
	log           slog.Logger
	id            *identity.ClientIdentity
	established   *rpc.SessionEstablished
	authenticated bool
	tosID         *string

	// replacement is set by the registry (under its lock) once this
	// holder has been replaced due to server side invalidation.
	replacement *Holder
}

// NewHolder returns an unestablished session for the given client identity.
// The identity is shared and must not be modified.
func NewHolder(id *identity.ClientIdentity, log slog.Logger) *Holder {
	if log == nil {
		log = slog.Disabled
	}
	return &Holder{
		baseLog: log,
		log:     log,
		now:     time.Now,
		id:      id,
	}
}

// shortID is the prefix of session ids used in logs.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *Holder) setLoggerLocked() {
	if h.established == nil {
		h.log = h.baseLog
		return
	}
	h.log = logutil.PrefixLogger(h.baseLog, "["+shortID(h.established.ID)+"]")
}

// Identity returns the client identity this session was created with.
func (h *Holder) Identity() *identity.ClientIdentity {
	h.mtx.Lock()
	id := h.id
	h.mtx.Unlock()
	return id
}

// ID returns the server session id or an empty string if the session is not
// established.
func (h *Holder) ID() string {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.established == nil {
		return ""
	}
	return h.established.ID
}

// State returns the current lifecycle state.
func (h *Holder) State() State {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	switch {
	case h.established == nil:
		return StateUnestablished
	case h.authenticated:
		return StateAuthenticated
	default:
		return StateEstablished
	}
}

// IsAuthenticated returns true if a user is logged in within this session.
func (h *Holder) IsAuthenticated() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.authenticated
}

// Create asks the server for a new session, replacing any previously
// established one. A new session is never authenticated.
func (h *Holder) Create(ctx context.Context, c rpc.Caller) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	params := rpc.CreateSessionParams{
		PublicHash:  h.id.PublicHash,
		PrivateHash: h.id.PrivateHash,
		Platform:    h.id.Platform,
		Name:        h.id.Name,
		Version:     h.id.Version,
	}
	var est rpc.SessionEstablished
	if err := c.Call(ctx, rpc.MethodSessionCreate, params, &est); err != nil {
		return err
	}
	if est.ID == "" || est.Challenge == "" {
		return fmt.Errorf("server returned incomplete session %q", est.ID)
	}
	if _, err := challenge.DecodeKey(est.Challenge); err != nil {
		return fmt.Errorf("server returned session %s with %w", est.ID, err)
	}

	h.established = &est
	h.authenticated = false
	h.setLoggerLocked()
	h.log.Infof("Established session %s for client %s", est.ID, h.id)
	return nil
}

func (h *Holder) identificationLocked() (rpc.SessionIdentification, error) {
	if h.established == nil {
		return rpc.SessionIdentification{}, ErrSessionNotEstablished
	}
	answer, err := challenge.Answer(h.id.PrivateHash, h.established.Challenge, h.now())
	if err != nil {
		return rpc.SessionIdentification{}, err
	}
	return rpc.SessionIdentification{
		SessionID:        h.established.ID,
		ClientPublicHash: h.id.PublicHash,
		ChallengeAnswer:  answer,
	}, nil
}

// Identification returns a freshly computed identification for this session.
// The result is only valid for the current challenge time window and must
// not be cached.
func (h *Holder) Identification() (rpc.SessionIdentification, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.identificationLocked()
}

// Get fetches the server view of this session. It does not modify the local
// state.
func (h *Holder) Get(ctx context.Context, c rpc.Caller) (*rpc.Session, error) {
	id, err := h.Identification()
	if err != nil {
		return nil, err
	}
	var sess rpc.Session
	err = c.Call(ctx, rpc.MethodSessionGet, rpc.SessionParams{SessionIdentification: id}, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Authenticate logs the user in within this session. otp may be nil when the
// account does not use two factor authentication.
func (h *Holder) Authenticate(ctx context.Context, c rpc.Caller, username,
	password string, otp *string) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	id, err := h.identificationLocked()
	if err != nil {
		return err
	}
	params := rpc.AuthenticateUserParams{
		SessionIdentification: id,
		Username:              username,
		Password:              password,
		OTP:                   otp,
	}
	var ok bool
	if err := c.Call(ctx, rpc.MethodSessionAuthenticateUser, params, &ok); err != nil {
		return err
	}
	if !ok {
		return rpc.NewError(int(rpc.ErrAuthenticationFailure), "")
	}
	h.authenticated = true
	h.log.Infof("Authenticated as %q", username)
	return nil
}

// Logout logs the user out. The session stays established and may be
// authenticated again.
func (h *Holder) Logout(ctx context.Context, c rpc.Caller) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	id, err := h.identificationLocked()
	if err != nil {
		return err
	}
	var ok bool
	err = c.Call(ctx, rpc.MethodSessionLogout, rpc.SessionParams{SessionIdentification: id}, &ok)
	if err != nil {
		return err
	}
	h.authenticated = false
	h.log.Infof("Logged out")
	return nil
}

// AcceptTermsOfService records that the user agreed to the given terms of
// service document. The acceptance is used by the next Register call.
func (h *Holder) AcceptTermsOfService(doc *rpc.HelpDocument) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	id := doc.ID
	h.tosID = &id
	h.log.Debugf("Accepted terms of service %s", id)
}

// Register creates a new user account. The terms of service must have been
// accepted beforehand. The acceptance is consumed by the call whether or not
// registration succeeds.
func (h *Holder) Register(ctx context.Context, c rpc.Caller, req RegisterRequest) (*rpc.Peer, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.tosID == nil {
		return nil, ErrTermsOfServiceNotAgreed
	}
	id, err := h.identificationLocked()
	if err != nil {
		return nil, err
	}
	tosID := *h.tosID
	h.tosID = nil

	params := rpc.RegisterParams{
		SessionIdentification: id,
		TermsOfServiceID:      tosID,
		TermsOfServiceAgree:   true,
		Username:              req.Username,
		Password:              req.Password,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
	}
	var peer rpc.Peer
	if err := c.Call(ctx, rpc.MethodSessionRegister, params, &peer); err != nil {
		return nil, err
	}
	h.log.Infof("Registered user %q (peer %s)", req.Username, peer.ID)
	return &peer, nil
}

// holderJSON is the persisted form of a Holder.
type holderJSON struct {
	Established   *rpc.SessionEstablished  `json:"established"`
	Authenticated bool                     `json:"authenticated"`
	ClientInfo    *identity.ClientIdentity `json:"client_info"`
	TOSRead       *string                  `json:"tos_read"`
}

// MarshalJSON encodes the session state, including the client identity it
// belongs to.
func (h *Holder) MarshalJSON() ([]byte, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return json.Marshal(holderJSON{
		Established:   h.established,
		Authenticated: h.authenticated,
		ClientInfo:    h.id,
		TOSRead:       h.tosID,
	})
}

// UnmarshalJSON decodes a session encoded by MarshalJSON. Errors wrap
// ErrCorrupt.
func (h *Holder) UnmarshalJSON(b []byte) error {
	var hj holderJSON
	if err := json.Unmarshal(b, &hj); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if hj.ClientInfo == nil || hj.ClientInfo.PublicHash == "" || hj.ClientInfo.PrivateHash == "" {
		return fmt.Errorf("%w: session without client info", ErrCorrupt)
	}
	if est := hj.Established; est != nil && (est.ID == "" || est.Challenge == "") {
		return fmt.Errorf("%w: incomplete established session", ErrCorrupt)
	}
	if hj.Established == nil && hj.Authenticated {
		return fmt.Errorf("%w: authenticated session that is not established", ErrCorrupt)
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.baseLog == nil {
		h.baseLog = slog.Disabled
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.id = hj.ClientInfo
	h.established = hj.Established
	h.authenticated = hj.Authenticated
	h.tosID = hj.TOSRead
	h.setLoggerLocked()
	return nil
}

// setLogger replaces the logger of a decoded holder.
func (h *Holder) setLogger(log slog.Logger) {
	h.mtx.Lock()
	h.baseLog = log
	h.setLoggerLocked()
	h.mtx.Unlock()
}
