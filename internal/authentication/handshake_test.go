package authentication_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/ipass-go/ipass/internal/authentication"
	"github.com/ipass-go/ipass/mocks"
	"github.com/ipass-go/ipass/pkg/protocol"
	"github.com/ipass-go/ipass/pkg/session"
)

const testPIN = "123456"

var _ = Describe("Handshake", func() {
	var (
		ctrl      *gomock.Controller
		conn      *mocks.Connector
		store     *mocks.SessionStore
		prompter  *mocks.PINPrompter
		server    *counterpart
		handshake *authentication.Handshake
		saved     []*session.Record
	)

	expectSave := func() {
		store.EXPECT().Save(gomock.Any()).DoAndReturn(func(record *session.Record) error {
			saved = append(saved, record)
			return nil
		})
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		conn = mocks.NewConnector(ctrl)
		store = mocks.NewSessionStore(ctrl)
		prompter = mocks.NewPINPrompter(ctrl)
		server = newCounterpart(testPIN)
		handshake = authentication.NewHandshake(conn, store, prompter)
		saved = nil
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	It("starts in StateStart", func() {
		Expect(handshake.State()).To(Equal(authentication.StateStart))
		Expect(handshake.Token()).To(BeEmpty())
	})

	Context("against a cooperative password manager", func() {
		BeforeEach(func() {
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(2)
			prompter.EXPECT().PromptPIN(gomock.Any()).Return(testPIN, nil)
			expectSave()
		})

		It("authenticates and persists the shared key", func() {
			Expect(handshake.Run(context.Background())).To(Succeed())
			Expect(handshake.State()).To(Equal(authentication.StateAuthenticated))
			Expect(server.proofValid).To(BeTrue())

			Expect(saved).To(HaveLen(1))
			Expect(saved[0].Username).To(Equal(handshake.Token()))
			Expect(saved[0].SharedKey).To(Equal(base64.StdEncoding.EncodeToString(server.sessionKey)))
		})

		It("sends well-formed handshake requests", func() {
			Expect(handshake.Run(context.Background())).To(Succeed())
			Expect(server.requests).To(HaveLen(2))

			first := server.requests[0]
			Expect(first.Cmd).To(Equal(protocol.CmdHandShake))
			Expect(first.Msg.QID).To(Equal("m0"))
			Expect(first.Msg.HSTBRSR).To(Equal("Arc"))
			var keyExchange protocol.ClientKeyExchange
			Expect(first.Msg.DecodePAKE(&keyExchange)).To(Succeed())
			Expect(keyExchange.MSG).To(Equal(protocol.MsgClientKeyExchange))
			Expect(keyExchange.VER).To(Equal("1.0"))
			Expect(keyExchange.PROTO).To(Equal([]protocol.SecretSessionVersion{protocol.SrpWithRfcVerification}))
			token, err := base64.StdEncoding.DecodeString(keyExchange.TID)
			Expect(err).ToNot(HaveOccurred())
			Expect(token).To(HaveLen(authentication.TokenLength))

			second := server.requests[1]
			Expect(second.Msg.QID).To(Equal("m2"))
			Expect(second.Msg.HSTBRSR).To(Equal("Arc"))
			var verification protocol.ClientVerification
			Expect(second.Msg.DecodePAKE(&verification)).To(Succeed())
			Expect(verification.MSG).To(Equal(protocol.MsgClientVerification))
			Expect(verification.TID).To(Equal(keyExchange.TID))
		})

		It("cannot be run twice", func() {
			Expect(handshake.Run(context.Background())).To(Succeed())
			Expect(handshake.Run(context.Background())).ToNot(Succeed())
		})
	})

	It("accepts a key exchange without a version", func() {
		server.keyExchange = func(pake *protocol.ServerKeyExchange) {
			pake.VER = nil
		}
		conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(2)
		prompter.EXPECT().PromptPIN(gomock.Any()).Return(testPIN, nil)
		expectSave()
		Expect(handshake.Run(context.Background())).To(Succeed())
	})

	Describe("rejecting the server key exchange", func() {
		BeforeEach(func() {
			// No PIN prompt and no Save are expected: the handshake stops after the first reply.
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(1)
		})

		AfterEach(func() {
			Expect(handshake.State()).To(Equal(authentication.StateFailed))
		})

		It("rejects replies for another session", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				pake.TID = "c29tZW9uZSBlbHNlJ3MgdG9rZW4="
			}
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrForeignSession))
		})

		It("checks the session before the error code", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				code := 4
				pake.ErrCode = &code
				pake.TID = "b3RoZXI="
			}
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrForeignSession))
		})

		It("reports error codes", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				code := 5
				pake.ErrCode = &code
				pake.MSG = protocol.MsgServerVerification
			}
			err := handshake.Run(context.Background())
			var serverErr *protocol.ServerError
			Expect(errors.As(err, &serverErr)).To(BeTrue())
			Expect(serverErr.Code).To(Equal(5))
			Expect(err.Error()).To(Equal("invalid server hello: error code: 5"))
		})

		It("rejects unexpected message types", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				pake.MSG = protocol.MsgServerVerification
			}
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrUnexpectedMessage))
		})

		It("rejects the old verification protocol", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				pake.PROTO = protocol.SrpWithOldVerification
			}
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrUnsupportedProtocol))
		})

		It("rejects unknown versions", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				version := "2.0"
				pake.VER = &version
			}
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrUnsupportedVersion))
		})

		It("rejects an undecodable public key", func() {
			server.keyExchange = func(pake *protocol.ServerKeyExchange) {
				pake.B = "not base64"
			}
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrBadResponse))
		})
	})

	Describe("failing verification", func() {
		It("keeps the persisted key when the PIN is wrong", func() {
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(2)
			prompter.EXPECT().PromptPIN(gomock.Any()).Return("654321", nil)
			expectSave()

			err := handshake.Run(context.Background())
			var serverErr *protocol.ServerError
			Expect(errors.As(err, &serverErr)).To(BeTrue())
			Expect(serverErr.Code).To(Equal(1))
			Expect(handshake.State()).To(Equal(authentication.StateFailed))
			Expect(server.proofValid).To(BeFalse())

			Expect(saved).To(HaveLen(1))
			Expect(saved[0].Authenticated()).To(BeTrue())
			Expect(saved[0].SharedKey).ToNot(Equal(base64.StdEncoding.EncodeToString(server.sessionKey)))
		})

		It("rejects verification replies for another session", func() {
			server.verification = func(pake *protocol.ServerVerification) {
				pake.TID = "b3RoZXI="
			}
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(2)
			prompter.EXPECT().PromptPIN(gomock.Any()).Return(testPIN, nil)
			expectSave()
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrForeignSession))
		})

		It("rejects unexpected verification message types", func() {
			server.verification = func(pake *protocol.ServerVerification) {
				pake.MSG = protocol.MsgServerKeyExchange
			}
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(2)
			prompter.EXPECT().PromptPIN(gomock.Any()).Return(testPIN, nil)
			expectSave()
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrUnexpectedMessage))
			Expect(handshake.State()).To(Equal(authentication.StateFailed))
		})
	})

	Describe("local failures", func() {
		It("returns transport errors without retrying", func() {
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("%w after 10s", protocol.ErrTimeout)).Times(1)
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrTimeout))
			Expect(handshake.State()).To(Equal(authentication.StateFailed))
		})

		It("rejects malformed replies", func() {
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return([]byte("{"), nil)
			Expect(handshake.Run(context.Background())).To(MatchError(protocol.ErrBadResponse))
		})

		It("stops when the PIN prompt fails", func() {
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(1)
			prompter.EXPECT().PromptPIN(gomock.Any()).Return("", errors.New("no terminal"))
			Expect(handshake.Run(context.Background())).ToNot(Succeed())
			Expect(handshake.State()).To(Equal(authentication.StateFailed))
		})

		It("stops when the session cannot be saved", func() {
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(server.respond).Times(1)
			prompter.EXPECT().PromptPIN(gomock.Any()).Return(testPIN, nil)
			store.EXPECT().Save(gomock.Any()).Return(errors.New("disk full"))
			Expect(handshake.Run(context.Background())).To(MatchError("disk full"))
		})
	})
})
