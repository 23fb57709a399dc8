package authentication_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ipass-go/ipass/internal/srp"
	"github.com/ipass-go/ipass/pkg/protocol"
)

// counterpart plays the password manager's side of the handshake.
type counterpart struct {
	pin  string
	salt []byte

	// Hooks for corrupting replies.
	keyExchange  func(*protocol.ServerKeyExchange)
	verification func(*protocol.ServerVerification)

	requests     []protocol.HandshakeRequest
	clientPublic []byte
	private      *big.Int
	public       *big.Int
	sessionKey   []byte
	proofValid   bool
}

func newCounterpart(pin string) *counterpart {
	return &counterpart{
		pin:     pin,
		salt:    []byte{0xeb, 0x32, 0xdb, 0x13, 0xdc, 0xd4, 0xe3, 0xa4, 0x40, 0x4c, 0x95, 0x91, 0x0c, 0x35, 0x99, 0xfd},
		private: new(big.Int).SetBytes([]byte("counterpart private exponent b!!")),
	}
}

func hashInt(parts ...[]byte) *big.Int {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func padded(b []byte) []byte {
	out := make([]byte, srp.PaddedLength)
	copy(out[srp.PaddedLength-len(b):], b)
	return out
}

func (c *counterpart) respond(_ context.Context, request []byte) ([]byte, error) {
	var req protocol.HandshakeRequest
	if err := json.Unmarshal(request, &req); err != nil {
		return nil, err
	}
	c.requests = append(c.requests, req)
	switch req.Msg.QID {
	case protocol.QIDClientKeyExchange:
		return c.keyExchangeReply(&req.Msg)
	case protocol.QIDClientVerification:
		return c.verificationReply(&req.Msg)
	}
	return nil, fmt.Errorf("unexpected QID %s", req.Msg.QID)
}

func (c *counterpart) verifier(token string) *big.Int {
	N, g := srp.Group()
	x := hashInt(c.salt, hashInt([]byte(token+":"+c.pin)).Bytes())
	return new(big.Int).Exp(g, x, N)
}

func (c *counterpart) keyExchangeReply(msg *protocol.HandshakeMessage) ([]byte, error) {
	var pake protocol.ClientKeyExchange
	if err := msg.DecodePAKE(&pake); err != nil {
		return nil, err
	}
	var err error
	if c.clientPublic, err = base64.StdEncoding.DecodeString(pake.A); err != nil {
		return nil, err
	}

	N, g := srp.Group()
	v := c.verifier(pake.TID)
	k := hashInt(N.Bytes(), padded(g.Bytes()))
	c.public = new(big.Int).Exp(g, c.private, N)
	c.public.Add(c.public, new(big.Int).Mul(k, v))
	c.public.Mod(c.public, N)

	u := hashInt(padded(c.clientPublic), padded(c.public.Bytes()))
	S := new(big.Int).Exp(v, u, N)
	S.Mul(S, new(big.Int).SetBytes(c.clientPublic))
	S.Exp(S, c.private, N)
	c.sessionKey = hashInt(S.Bytes()).FillBytes(make([]byte, 32))

	version := protocol.ProtocolVersion
	reply := protocol.ServerKeyExchange{
		TID:   pake.TID,
		MSG:   protocol.MsgServerKeyExchange,
		B:     base64.StdEncoding.EncodeToString(c.public.Bytes()),
		PROTO: protocol.SrpWithRfcVerification,
		VER:   &version,
		Salt:  base64.StdEncoding.EncodeToString(c.salt),
	}
	if c.keyExchange != nil {
		c.keyExchange(&reply)
	}
	return c.encode(protocol.QIDClientKeyExchange, &reply)
}

func (c *counterpart) verificationReply(msg *protocol.HandshakeMessage) ([]byte, error) {
	var pake protocol.ClientVerification
	if err := msg.DecodePAKE(&pake); err != nil {
		return nil, err
	}
	expected, err := srp.ClientProof(pake.TID, c.salt, c.clientPublic, c.public.Bytes(), c.sessionKey)
	if err != nil {
		return nil, err
	}
	c.proofValid = pake.M == base64.StdEncoding.EncodeToString(expected)

	reply := protocol.ServerVerification{
		TID:  pake.TID,
		MSG:  protocol.MsgServerVerification,
		HAMK: "aGFtaw==",
	}
	if !c.proofValid {
		code := 1
		reply.ErrCode = &code
	}
	if c.verification != nil {
		c.verification(&reply)
	}
	return c.encode(protocol.QIDClientVerification, &reply)
}

func (c *counterpart) encode(qid string, pake interface{}) ([]byte, error) {
	msg, err := protocol.NewHandshakeMessage(qid, pake)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&protocol.HandshakeResponse{Cmd: protocol.CmdHandShake, Payload: *msg})
}
