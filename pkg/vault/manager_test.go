package vault_test

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ipass-go/ipass/internal/authentication"
	"github.com/ipass-go/ipass/pkg/protocol"
)

// sealedRequest is a decoded request together with the plaintext of its SDATA.
type sealedRequest struct {
	Cmd     protocol.Cmd
	TabID   int
	FrameID int
	URL     string
	QID     string
	TID     string
	Body    map[string]interface{}
}

// fakeManager answers sealed requests the way the password manager does.
type fakeManager struct {
	codec *authentication.Codec
	reply func(req *sealedRequest) interface{}
	// raw, if set, replaces the whole reply datagram.
	raw []byte

	requests []*sealedRequest
}

func newFakeManager(key []byte, reply func(req *sealedRequest) interface{}) *fakeManager {
	codec, err := authentication.NewCodec(key)
	if err != nil {
		panic(err)
	}
	return &fakeManager{codec: codec, reply: reply}
}

func (m *fakeManager) respond(_ context.Context, request []byte) ([]byte, error) {
	var outer struct {
		Cmd     protocol.Cmd    `json:"cmd"`
		TabID   int             `json:"tabId"`
		FrameID int             `json:"frameId"`
		URL     string          `json:"url"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(request, &outer); err != nil {
		return nil, err
	}
	// Some commands nest the query inside a JSON string.
	payload := outer.Payload
	var nested string
	if json.Unmarshal(payload, &nested) == nil {
		payload = json.RawMessage(nested)
	}
	var query protocol.Query
	if err := json.Unmarshal(payload, &query); err != nil {
		return nil, err
	}
	req := &sealedRequest{
		Cmd:     outer.Cmd,
		TabID:   outer.TabID,
		FrameID: outer.FrameID,
		URL:     outer.URL,
		QID:     query.QID,
		TID:     query.SMSG.TID,
	}
	if err := m.codec.OpenWithLayout(query.SMSG.SDATA, authentication.NonceSuffix, &req.Body); err != nil {
		return nil, fmt.Errorf("manager could not open request: %w", err)
	}
	m.requests = append(m.requests, req)
	if m.raw != nil {
		return m.raw, nil
	}

	sealed, err := m.codec.SealWithLayout(m.reply(req), authentication.NoncePrefix)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"cmd": outer.Cmd,
		"payload": map[string]interface{}{
			"SMSG": map[string]string{"TID": req.TID, "SDATA": sealed},
		},
	})
}
