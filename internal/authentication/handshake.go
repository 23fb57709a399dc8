package authentication

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/internal/srp"
	"github.com/ipass-go/ipass/pkg/connector"
	"github.com/ipass-go/ipass/pkg/protocol"
	"github.com/ipass-go/ipass/pkg/session"
)

// TokenLength is the number of random bytes in the identity token (TID).
const TokenLength = 16

// ErrKeyAgreement indicates the server's key exchange parameters could not be used.
var ErrKeyAgreement = protocol.NewError(protocol.KindCrypto, "key agreement failed", false, false)

// State tracks the progress of a Handshake.
type State int

const (
	StateStart State = iota
	StateAwaitingServerKeyExchange
	StateAwaitingServerVerification
	StateAuthenticated
	StateFailed
)

var stateNames = map[State]string{
	StateStart:                      "start",
	StateAwaitingServerKeyExchange:  "awaiting server key exchange",
	StateAwaitingServerVerification: "awaiting server verification",
	StateAuthenticated:              "authenticated",
	StateFailed:                     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PINPrompter asks the user for the PIN the password manager displays during the handshake.
//
//go:generate mockgen -destination=../../mocks/prompter.go -package=mocks -mock_names=PINPrompter=PINPrompter . PINPrompter
type PINPrompter interface {
	PromptPIN(ctx context.Context) (string, error)
}

// Handshake authenticates the CLI to the password manager.
//
// The shared key is saved to the session store as soon as it is derived, before the password
// manager confirms the client proof. A failed verification therefore leaves a record whose key
// the password manager will not accept; the next request fails to decrypt and the user re-runs
// auth.
type Handshake struct {
	conn   connector.Connector
	store  session.Store
	prompt PINPrompter
	rng    io.Reader

	state        State
	token        string
	privateKey   []byte
	publicKey    []byte
	serverPublic []byte
	salt         []byte
	sessionKey   []byte
}

// NewHandshake returns a Handshake in StateStart.
func NewHandshake(conn connector.Connector, store session.Store, prompt PINPrompter) *Handshake {
	return &Handshake{conn: conn, store: store, prompt: prompt, rng: rand.Reader}
}

func (h *Handshake) State() State {
	return h.state
}

// Token returns the identity token generated for this handshake. It is empty before Run.
func (h *Handshake) Token() string {
	return h.token
}

// Run performs both round trips of the handshake. Errors are not retried; on error the Handshake
// is left in StateFailed.
func (h *Handshake) Run(ctx context.Context) error {
	if h.state != StateStart {
		return fmt.Errorf("handshake already in state %s", h.state)
	}
	err := h.run(ctx)
	if err != nil {
		log.Debug("Handshake failed in state %s: %s", h.state, err)
		h.state = StateFailed
	}
	return err
}

func (h *Handshake) run(ctx context.Context) error {
	if err := h.generateKeys(); err != nil {
		return err
	}

	h.state = StateAwaitingServerKeyExchange
	reply, err := h.exchange(ctx, protocol.QIDClientKeyExchange, &protocol.ClientKeyExchange{
		TID:   h.token,
		MSG:   protocol.MsgClientKeyExchange,
		A:     base64.StdEncoding.EncodeToString(h.publicKey),
		VER:   protocol.ProtocolVersion,
		PROTO: []protocol.SecretSessionVersion{protocol.SrpWithRfcVerification},
	})
	if err != nil {
		return err
	}
	var keyExchange protocol.ServerKeyExchange
	if err := reply.DecodePAKE(&keyExchange); err != nil {
		return err
	}
	if err := h.checkServerKeyExchange(&keyExchange); err != nil {
		return err
	}

	pin, err := h.prompt.PromptPIN(ctx)
	if err != nil {
		return fmt.Errorf("could not read PIN: %w", err)
	}
	h.sessionKey, err = srp.SessionKey(h.publicKey, h.privateKey, h.serverPublic, h.token, pin, h.salt)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrKeyAgreement, err)
	}
	if err := h.store.Save(session.NewRecord(h.token, h.sessionKey)); err != nil {
		return err
	}

	proof, err := srp.ClientProof(h.token, h.salt, h.publicKey, h.serverPublic, h.sessionKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrKeyAgreement, err)
	}
	h.state = StateAwaitingServerVerification
	reply, err = h.exchange(ctx, protocol.QIDClientVerification, &protocol.ClientVerification{
		TID: h.token,
		MSG: protocol.MsgClientVerification,
		M:   base64.StdEncoding.EncodeToString(proof),
	})
	if err != nil {
		return err
	}
	var verification protocol.ServerVerification
	if err := reply.DecodePAKE(&verification); err != nil {
		return err
	}
	if err := h.checkServerVerification(&verification); err != nil {
		return err
	}
	h.state = StateAuthenticated
	log.Info("Challenge verified, session updated")
	return nil
}

func (h *Handshake) generateKeys() error {
	token := make([]byte, TokenLength)
	if _, err := io.ReadFull(h.rng, token); err != nil {
		return fmt.Errorf("could not generate identity token: %w", err)
	}
	h.token = base64.StdEncoding.EncodeToString(token)

	var err error
	if h.privateKey, err = srp.NewPrivateKey(h.rng); err != nil {
		return err
	}
	if h.publicKey, err = srp.PublicKey(h.privateKey); err != nil {
		return err
	}
	return nil
}

func (h *Handshake) exchange(ctx context.Context, qid string, pake interface{}) (*protocol.HandshakeMessage, error) {
	msg, err := protocol.NewHandshakeMessage(qid, pake)
	if err != nil {
		return nil, err
	}
	request, err := json.Marshal(&protocol.HandshakeRequest{Cmd: protocol.CmdHandShake, Msg: *msg})
	if err != nil {
		return nil, err
	}
	encoded, err := h.conn.Exchange(ctx, request)
	if err != nil {
		return nil, err
	}
	var rsp protocol.HandshakeResponse
	if err := json.Unmarshal(encoded, &rsp); err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrBadResponse, err)
	}
	return &rsp.Payload, nil
}

func checkErrCode(code *int) error {
	if code != nil && *code > 0 {
		return &protocol.ServerError{Code: *code}
	}
	return nil
}

func (h *Handshake) checkServerKeyExchange(pake *protocol.ServerKeyExchange) error {
	if pake.TID != h.token {
		return protocol.ErrForeignSession
	}
	if err := checkErrCode(pake.ErrCode); err != nil {
		return err
	}
	if pake.MSG != protocol.MsgServerKeyExchange {
		return protocol.ErrUnexpectedMessage
	}
	if pake.PROTO != protocol.SrpWithRfcVerification {
		return protocol.ErrUnsupportedProtocol
	}
	if pake.VER != nil && *pake.VER != protocol.ProtocolVersion {
		return protocol.ErrUnsupportedVersion
	}

	var err error
	if h.serverPublic, err = base64.StdEncoding.DecodeString(pake.B); err != nil || len(h.serverPublic) == 0 {
		return fmt.Errorf("%w: invalid server public key", protocol.ErrBadResponse)
	}
	if h.salt, err = base64.StdEncoding.DecodeString(pake.Salt); err != nil {
		return fmt.Errorf("%w: invalid salt", protocol.ErrBadResponse)
	}
	return nil
}

func (h *Handshake) checkServerVerification(pake *protocol.ServerVerification) error {
	if pake.TID != h.token {
		return protocol.ErrForeignSession
	}
	if err := checkErrCode(pake.ErrCode); err != nil {
		return err
	}
	if pake.MSG != protocol.MsgServerVerification {
		return protocol.ErrUnexpectedMessage
	}
	return nil
}
