package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cmd identifies the request type in the outer envelope.
type Cmd int

const (
	CmdHandShake               Cmd = 2
	CmdGetLoginNamesForURL     Cmd = 4
	CmdGetPasswordForLoginName Cmd = 5
	CmdNewAccount4URL          Cmd = 6
	CmdSaveStage1LoginName     Cmd = 7
	CmdDidFillOneTimeCode      Cmd = 17
)

var cmdNames = map[Cmd]string{
	CmdHandShake:               "HandShake",
	CmdGetLoginNamesForURL:     "GetLoginNamesForURL",
	CmdGetPasswordForLoginName: "GetPasswordForLoginName",
	CmdNewAccount4URL:          "NewAccount4URL",
	CmdSaveStage1LoginName:     "SaveStage1LoginName",
	CmdDidFillOneTimeCode:      "DidFillOneTimeCode",
}

func (c Cmd) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Cmd(%d)", int(c))
}

// MsgType identifies the step of the SRP handshake carried in a PAKE document.
type MsgType int

const (
	MsgClientKeyExchange  MsgType = 0
	MsgServerKeyExchange  MsgType = 1
	MsgClientVerification MsgType = 2
	MsgServerVerification MsgType = 3
)

// Action is the ACT field of an encrypted query.
type Action int

const (
	ActionSearch      Action = 2
	ActionMaybeAdd    Action = 4
	ActionGhostSearch Action = 5
)

// SecretSessionVersion is the PROTO field of the handshake. Only SrpWithRfcVerification is
// supported.
type SecretSessionVersion int

const (
	SrpWithOldVerification SecretSessionVersion = 0
	SrpWithRfcVerification SecretSessionVersion = 1
)

// Fixed field values expected by the password manager.
const (
	BrowserName           = "Arc"
	ProtocolVersion       = "1.0"
	QIDClientKeyExchange  = "m0"
	QIDClientVerification = "m2"

	QIDGetLoginNames      = "CmdGetLoginNames4URL"
	QIDGetPassword        = "CmdGetPassword4LoginName"
	QIDDidFillOneTimeCode = "CmdDidFillOneTimeCode"
	QIDSaveStage1         = "CmdSaveStage1LoginName"
	QIDNewAccount         = "CmdNewAccount4URL"

	TypeOneTimeCodes = "oneTimeCodes"
)

// HandshakeMessage is the msg (request) or payload (response) of a HandShake command.
//
// PAKE holds a JSON document. Because it is a byte slice, encoding/json transmits it as a standard
// base64 string, which is exactly the representation the password manager expects.
type HandshakeMessage struct {
	HSTBRSR string `json:"HSTBRSR,omitempty"`
	PAKE    []byte `json:"PAKE"`
	QID     string `json:"QID"`
}

// NewHandshakeMessage serializes pake into a HandshakeMessage with the given query ID.
func NewHandshakeMessage(qid string, pake interface{}) (*HandshakeMessage, error) {
	encoded, err := json.Marshal(pake)
	if err != nil {
		return nil, err
	}
	return &HandshakeMessage{HSTBRSR: BrowserName, PAKE: encoded, QID: qid}, nil
}

// DecodePAKE parses the PAKE document into v.
func (m *HandshakeMessage) DecodePAKE(v interface{}) error {
	if len(m.PAKE) == 0 {
		return fmt.Errorf("%w: missing PAKE", ErrBadResponse)
	}
	if err := json.Unmarshal(m.PAKE, v); err != nil {
		return fmt.Errorf("%w: malformed PAKE: %s", ErrBadResponse, err)
	}
	return nil
}

type HandshakeRequest struct {
	Cmd Cmd              `json:"cmd"`
	Msg HandshakeMessage `json:"msg"`
}

type HandshakeResponse struct {
	Cmd     Cmd              `json:"cmd"`
	Payload HandshakeMessage `json:"payload"`
}

// ClientKeyExchange is the PAKE document of the first handshake request.
type ClientKeyExchange struct {
	A     string                 `json:"A"`
	MSG   MsgType                `json:"MSG"`
	PROTO []SecretSessionVersion `json:"PROTO"`
	TID   string                 `json:"TID"`
	VER   string                 `json:"VER"`
}

// ServerKeyExchange is the PAKE document of the first handshake response.
type ServerKeyExchange struct {
	B       string               `json:"B"`
	ErrCode *int                 `json:"ErrCode,omitempty"`
	MSG     MsgType              `json:"MSG"`
	PROTO   SecretSessionVersion `json:"PROTO"`
	TID     string               `json:"TID"`
	VER     *string              `json:"VER,omitempty"`
	Salt    string               `json:"s"`
}

// ClientVerification is the PAKE document carrying the client proof M.
type ClientVerification struct {
	M   string  `json:"M"`
	MSG MsgType `json:"MSG"`
	TID string  `json:"TID"`
}

// ServerVerification is the PAKE document of the final handshake response.
type ServerVerification struct {
	ErrCode *int    `json:"ErrCode,omitempty"`
	HAMK    string  `json:"HAMK"`
	MSG     MsgType `json:"MSG"`
	TID     string  `json:"TID"`
}

// SMSG carries the session's identity token and a sealed envelope.
type SMSG struct {
	SDATA string `json:"SDATA"`
	TID   string `json:"TID"`
}

// Query is the payload of every request issued after the handshake.
type Query struct {
	QID  string `json:"QID"`
	SMSG SMSG   `json:"SMSG"`
}

// JSONString marshals Value as a JSON document nested inside a JSON string.
type JSONString struct {
	Value interface{}
}

func (s JSONString) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(s.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

func (s *JSONString) UnmarshalJSON(data []byte) error {
	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	if s.Value == nil {
		var v interface{}
		s.Value = &v
	}
	return json.Unmarshal([]byte(inner), s.Value)
}

// Request is the outer envelope of every non-handshake command.
type Request struct {
	Cmd     Cmd         `json:"cmd"`
	FrameID int         `json:"frameId"`
	Payload interface{} `json:"payload"`
	TabID   int         `json:"tabId"`
	URL     string      `json:"url,omitempty"`
}

// NewGetLoginNamesRequest asks for the login names saved for url. SDATA must seal a URLQuery.
func NewGetLoginNamesRequest(url string, smsg SMSG) *Request {
	return &Request{
		Cmd:     CmdGetLoginNamesForURL,
		TabID:   1,
		FrameID: 1,
		URL:     url,
		Payload: JSONString{Value: Query{QID: QIDGetLoginNames, SMSG: smsg}},
	}
}

// NewGetPasswordRequest asks for the password of one login. SDATA must seal a LoginQuery.
func NewGetPasswordRequest(url string, smsg SMSG) *Request {
	return &Request{
		Cmd:     CmdGetPasswordForLoginName,
		URL:     url,
		Payload: JSONString{Value: Query{QID: QIDGetPassword, SMSG: smsg}},
	}
}

// NewOneTimeCodeRequest asks for verification codes. SDATA must seal a OneTimeCodeQuery.
func NewOneTimeCodeRequest(smsg SMSG) *Request {
	return &Request{
		Cmd:     CmdDidFillOneTimeCode,
		Payload: JSONString{Value: Query{QID: QIDDidFillOneTimeCode, SMSG: smsg}},
	}
}

// NewSaveStage1Request announces a login name about to be saved. SDATA must seal a LoginQuery.
func NewSaveStage1Request(smsg SMSG) *Request {
	return &Request{
		Cmd:     CmdSaveStage1LoginName,
		Payload: Query{QID: QIDSaveStage1, SMSG: smsg},
	}
}

// NewAccountRequest stores a password. SDATA must seal a NewAccountQuery.
func NewAccountRequest(smsg SMSG) *Request {
	return &Request{
		Cmd:     CmdNewAccount4URL,
		Payload: Query{QID: QIDNewAccount, SMSG: smsg},
	}
}

// Response is the outer envelope of every non-handshake reply.
type Response struct {
	Cmd     Cmd `json:"cmd"`
	Payload struct {
		SMSG SMSG `json:"SMSG"`
	} `json:"payload"`
}

// DecodeResponse parses a reply datagram.
func DecodeResponse(data []byte) (*Response, error) {
	var rsp Response
	if err := json.Unmarshal(data, &rsp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadResponse, err)
	}
	if rsp.Payload.SMSG.SDATA == "" {
		return nil, fmt.Errorf("%w: missing SDATA", ErrBadResponse)
	}
	return &rsp, nil
}

// URLQuery is the sealed body of a GetLoginNamesForURL request.
type URLQuery struct {
	ACT Action `json:"ACT"`
	URL string `json:"URL"`
}

// LoginQuery is the sealed body of GetPasswordForLoginName and SaveStage1LoginName requests.
type LoginQuery struct {
	ACT Action `json:"ACT"`
	URL string `json:"URL"`
	USR string `json:"USR"`
}

type OneTimeCodeQuery struct {
	ACT       Action   `json:"ACT"`
	TYPE      string   `json:"TYPE"`
	FrameURLs []string `json:"frameURLs"`
}

// NewAccountQuery is the sealed body of a NewAccount4URL request. URL, USR and PWD describe the
// entry being replaced and are empty when adding.
type NewAccountQuery struct {
	ACT  Action `json:"ACT"`
	NPWD string `json:"NPWD"`
	NURL string `json:"NURL"`
	NUSR string `json:"NUSR"`
	PWD  string `json:"PWD"`
	URL  string `json:"URL"`
	USR  string `json:"USR"`
}

// LoginEntry is one saved login. It decodes from the password manager's USR/PWD names and encodes
// with the names printed by the CLI.
type LoginEntry struct {
	Password string   `json:"password"`
	Sites    []string `json:"sites"`
	User     string   `json:"user"`
}

func (e *LoginEntry) UnmarshalJSON(data []byte) error {
	var wire struct {
		Password string   `json:"password"`
		PWD      string   `json:"PWD"`
		Sites    []string `json:"sites"`
		User     string   `json:"user"`
		USR      string   `json:"USR"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.Sites = wire.Sites
	e.User = firstNonEmpty(wire.USR, wire.User)
	e.Password = firstNonEmpty(wire.PWD, wire.Password)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoginEntries is the decrypted body of GetLoginNamesForURL and GetPasswordForLoginName replies.
// Entries is nil when the password manager omits the list.
type LoginEntries struct {
	Entries []LoginEntry `json:"entries"`
}

type OTPEntry struct {
	Code     string `json:"code"`
	Domain   string `json:"domain"`
	Source   string `json:"source"`
	Username string `json:"username"`
}

// OTPEntries is the decrypted body of a DidFillOneTimeCode reply.
type OTPEntries struct {
	Entries []OTPEntry `json:"entries"`
}

// SaveStage1Result is the decrypted body of a SaveStage1LoginName reply.
type SaveStage1Result struct {
	STATUS                           int  `json:"STATUS"`
	RequiresUserAuthenticationToFill bool `json:"RequiresUserAuthenticationToFill"`
}

// FrameURL returns url with an http:// scheme when it has none.
func FrameURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "http://" + url
}
