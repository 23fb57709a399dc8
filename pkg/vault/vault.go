// Package vault issues credential requests to the password manager over an authenticated session.
//
// A Client needs a Connector reaching the relay daemon and a session.Store. Authenticate runs the
// PIN handshake and fills the store; every other method seals its query with the stored key:
//
//	conn, _ := udp.Dial(connector.DefaultPort, connector.DefaultTimeout)
//	defer conn.Close()
//	client := vault.New(conn, session.NewFileStore(path))
//	logins, err := client.ListLoginNames(ctx, "example.com")
package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ipass-go/ipass/internal/authentication"
	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/connector"
	"github.com/ipass-go/ipass/pkg/protocol"
	"github.com/ipass-go/ipass/pkg/session"
)

// Client issues requests on behalf of one CLI invocation.
type Client struct {
	conn  connector.Connector
	store session.Store
}

func New(conn connector.Connector, store session.Store) *Client {
	return &Client{conn: conn, store: store}
}

// Authenticate performs the PIN handshake and replaces the stored session.
func (c *Client) Authenticate(ctx context.Context, prompt authentication.PINPrompter) error {
	return authentication.NewHandshake(c.conn, c.store, prompt).Run(ctx)
}

// sealedSession holds what a request needs from the stored session.
type sealedSession struct {
	token string
	codec *authentication.Codec
}

func (c *Client) openSession() (*sealedSession, error) {
	record, err := session.LoadAuthenticated(c.store)
	if err != nil {
		return nil, err
	}
	codec, err := authentication.NewCodecFromRecord(record)
	if err != nil {
		return nil, err
	}
	return &sealedSession{token: record.Username, codec: codec}, nil
}

func (s *sealedSession) smsg(query interface{}) (protocol.SMSG, error) {
	sealed, err := s.codec.Seal(query)
	if err != nil {
		return protocol.SMSG{}, err
	}
	return protocol.SMSG{TID: s.token, SDATA: sealed}, nil
}

func (c *Client) send(ctx context.Context, request *protocol.Request) ([]byte, error) {
	encoded, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	log.Debug("Sending %s request", request.Cmd)
	reply, err := c.conn.Exchange(ctx, encoded)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", request.Cmd, err)
	}
	return reply, nil
}

// roundTrip sends request and opens the sealed body of the reply into v.
func (c *Client) roundTrip(ctx context.Context, s *sealedSession, request *protocol.Request, v interface{}) error {
	reply, err := c.send(ctx, request)
	if err != nil {
		return err
	}
	rsp, err := protocol.DecodeResponse(reply)
	if err != nil {
		return err
	}
	return s.codec.Open(rsp.Payload.SMSG.SDATA, v)
}

// ListLoginNames returns the logins saved for url. Passwords are not included.
func (c *Client) ListLoginNames(ctx context.Context, url string) ([]protocol.LoginEntry, error) {
	s, err := c.openSession()
	if err != nil {
		return nil, err
	}
	smsg, err := s.smsg(&protocol.URLQuery{ACT: protocol.ActionGhostSearch, URL: url})
	if err != nil {
		return nil, err
	}
	var entries protocol.LoginEntries
	if err := c.roundTrip(ctx, s, protocol.NewGetLoginNamesRequest(url, smsg), &entries); err != nil {
		return nil, err
	}
	return entries.Entries, nil
}

// GetPassword returns the logins for username at url, including their passwords.
func (c *Client) GetPassword(ctx context.Context, url, username string) (*protocol.LoginEntries, error) {
	s, err := c.openSession()
	if err != nil {
		return nil, err
	}
	smsg, err := s.smsg(&protocol.LoginQuery{ACT: protocol.ActionSearch, URL: url, USR: username})
	if err != nil {
		return nil, err
	}
	var entries protocol.LoginEntries
	if err := c.roundTrip(ctx, s, protocol.NewGetPasswordRequest(url, smsg), &entries); err != nil {
		return nil, err
	}
	return &entries, nil
}

// GetOneTimeCodes returns the verification codes the password manager holds for url. If username
// is not empty, codes that belong to a different user are dropped. Codes without a username are
// always kept.
func (c *Client) GetOneTimeCodes(ctx context.Context, url, username string) (*protocol.OTPEntries, error) {
	s, err := c.openSession()
	if err != nil {
		return nil, err
	}
	smsg, err := s.smsg(&protocol.OneTimeCodeQuery{
		ACT:       protocol.ActionSearch,
		TYPE:      protocol.TypeOneTimeCodes,
		FrameURLs: []string{protocol.FrameURL(url)},
	})
	if err != nil {
		return nil, err
	}
	var entries protocol.OTPEntries
	if err := c.roundTrip(ctx, s, protocol.NewOneTimeCodeRequest(smsg), &entries); err != nil {
		return nil, err
	}
	if username != "" && entries.Entries != nil {
		kept := entries.Entries[:0]
		for _, entry := range entries.Entries {
			if entry.Username == "" || entry.Username == username {
				kept = append(kept, entry)
			}
		}
		entries.Entries = kept
	}
	return &entries, nil
}

// SavePassword stores a new login for username at url.
//
// Saving takes two requests. The first announces the login name; the password manager answers with
// a status that is only logged. The second carries the password.
func (c *Client) SavePassword(ctx context.Context, url, username, password string) error {
	s, err := c.openSession()
	if err != nil {
		return err
	}

	smsg, err := s.smsg(&protocol.LoginQuery{ACT: protocol.ActionSearch, URL: url, USR: username})
	if err != nil {
		return err
	}
	var stage1 protocol.SaveStage1Result
	if err := c.roundTrip(ctx, s, protocol.NewSaveStage1Request(smsg), &stage1); err != nil {
		return err
	}
	log.Debug("Save stage 1: STATUS=%d RequiresUserAuthenticationToFill=%t",
		stage1.STATUS, stage1.RequiresUserAuthenticationToFill)

	smsg, err = s.smsg(&protocol.NewAccountQuery{
		ACT:  protocol.ActionMaybeAdd,
		NURL: url,
		NUSR: username,
		NPWD: password,
	})
	if err != nil {
		return err
	}
	reply, err := c.send(ctx, protocol.NewAccountRequest(smsg))
	if err != nil {
		return err
	}
	return s.checkSaveReply(reply)
}

// checkSaveReply validates the reply to NewAccount4URL. The password manager does not always
// include a sealed body; when it does, the body must decrypt.
func (s *sealedSession) checkSaveReply(reply []byte) error {
	var rsp protocol.Response
	if err := json.Unmarshal(reply, &rsp); err != nil {
		return fmt.Errorf("%w: %s", protocol.ErrBadResponse, err)
	}
	if rsp.Payload.SMSG.SDATA == "" {
		return nil
	}
	var body json.RawMessage
	return s.codec.Open(rsp.Payload.SMSG.SDATA, &body)
}
