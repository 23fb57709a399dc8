package vault_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/ipass-go/ipass/internal/authentication"
	"github.com/ipass-go/ipass/mocks"
	"github.com/ipass-go/ipass/pkg/protocol"
	"github.com/ipass-go/ipass/pkg/session"
	"github.com/ipass-go/ipass/pkg/vault"
)

const testToken = "dGVzdCBpZGVudGl0eSB0aWQ="

func testSharedKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

var _ = Describe("Client", func() {
	var (
		ctrl    *gomock.Controller
		conn    *mocks.Connector
		store   *mocks.SessionStore
		manager *fakeManager
		client  *vault.Client
		ctx     context.Context
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		conn = mocks.NewConnector(ctrl)
		store = mocks.NewSessionStore(ctrl)
		client = vault.New(conn, store)
		ctx = context.Background()
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	serve := func(reply func(req *sealedRequest) interface{}) {
		manager = newFakeManager(testSharedKey()[:session.EncryptionKeyLength], reply)
		store.EXPECT().Load().Return(session.NewRecord(testToken, testSharedKey()), nil).AnyTimes()
		conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).DoAndReturn(manager.respond).AnyTimes()
	}

	Describe("ListLoginNames", func() {
		BeforeEach(func() {
			serve(func(req *sealedRequest) interface{} {
				return map[string]interface{}{
					"STATUS": 0,
					"Entries": []map[string]interface{}{
						{"USR": "alice", "sites": []string{"example.com"}},
						{"USR": "bob", "sites": []string{"example.com", "www.example.com"}},
					},
				}
			})
		})

		It("sends a ghost search for the URL", func() {
			_, err := client.ListLoginNames(ctx, "example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(manager.requests).To(HaveLen(1))
			req := manager.requests[0]
			Expect(req.Cmd).To(Equal(protocol.CmdGetLoginNamesForURL))
			Expect(req.TabID).To(Equal(1))
			Expect(req.FrameID).To(Equal(1))
			Expect(req.URL).To(Equal("example.com"))
			Expect(req.QID).To(Equal(protocol.QIDGetLoginNames))
			Expect(req.TID).To(Equal(testToken))
			Expect(req.Body).To(Equal(map[string]interface{}{"ACT": 5.0, "URL": "example.com"}))
		})

		It("returns the decrypted entries", func() {
			entries, err := client.ListLoginNames(ctx, "example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(Equal([]protocol.LoginEntry{
				{User: "alice", Sites: []string{"example.com"}},
				{User: "bob", Sites: []string{"example.com", "www.example.com"}},
			}))
		})
	})

	Describe("GetPassword", func() {
		It("searches for the login and returns its password", func() {
			serve(func(req *sealedRequest) interface{} {
				return map[string]interface{}{
					"Entries": []map[string]interface{}{
						{"USR": req.Body["USR"], "PWD": "hunter2", "sites": []string{"example.com"}},
					},
				}
			})
			entries, err := client.GetPassword(ctx, "example.com", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(entries.Entries).To(ConsistOf(protocol.LoginEntry{
				User:     "alice",
				Password: "hunter2",
				Sites:    []string{"example.com"},
			}))

			req := manager.requests[0]
			Expect(req.Cmd).To(Equal(protocol.CmdGetPasswordForLoginName))
			Expect(req.TabID).To(Equal(0))
			Expect(req.QID).To(Equal(protocol.QIDGetPassword))
			Expect(req.Body).To(Equal(map[string]interface{}{"ACT": 2.0, "URL": "example.com", "USR": "alice"}))
		})

		It("reports a reply without SDATA as a bad response", func() {
			serve(nil)
			manager.raw = []byte(`{"cmd":5,"payload":{"SMSG":{"TID":"x"}}}`)
			_, err := client.GetPassword(ctx, "example.com", "alice")
			Expect(err).To(MatchError(protocol.ErrBadResponse))
		})

		It("fails when the reply was sealed under another key", func() {
			serve(nil)
			other, err := authentication.NewCodec(make([]byte, session.EncryptionKeyLength))
			Expect(err).NotTo(HaveOccurred())
			sealed, err := other.SealWithLayout(map[string]string{}, authentication.NoncePrefix)
			Expect(err).NotTo(HaveOccurred())
			manager.raw = []byte(fmt.Sprintf(`{"cmd":5,"payload":{"SMSG":{"TID":"x","SDATA":%q}}}`, sealed))

			_, err = client.GetPassword(ctx, "example.com", "alice")
			Expect(err).To(MatchError(authentication.ErrDecryptFailed))
			Expect(protocol.KindOf(err)).To(Equal(protocol.KindCrypto))
		})
	})

	Describe("GetOneTimeCodes", func() {
		BeforeEach(func() {
			serve(func(req *sealedRequest) interface{} {
				return map[string]interface{}{
					"Entries": []map[string]string{
						{"username": "alice", "source": "totp", "domain": "example.com", "code": "123456"},
						{"username": "bob", "source": "totp", "domain": "example.com", "code": "654321"},
						{"username": "", "source": "sms", "domain": "example.com", "code": "000111"},
					},
				}
			})
		})

		It("adds a scheme to the frame URL", func() {
			_, err := client.GetOneTimeCodes(ctx, "example.com", "")
			Expect(err).NotTo(HaveOccurred())
			req := manager.requests[0]
			Expect(req.Cmd).To(Equal(protocol.CmdDidFillOneTimeCode))
			Expect(req.QID).To(Equal(protocol.QIDDidFillOneTimeCode))
			Expect(req.URL).To(BeEmpty())
			Expect(req.Body).To(Equal(map[string]interface{}{
				"ACT":       2.0,
				"TYPE":      "oneTimeCodes",
				"frameURLs": []interface{}{"http://example.com"},
			}))
		})

		It("keeps an explicit scheme", func() {
			_, err := client.GetOneTimeCodes(ctx, "https://example.com", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(manager.requests[0].Body["frameURLs"]).To(Equal([]interface{}{"https://example.com"}))
		})

		It("returns every code without a username", func() {
			codes, err := client.GetOneTimeCodes(ctx, "example.com", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(codes.Entries).To(HaveLen(3))
		})

		It("drops codes that belong to other users", func() {
			codes, err := client.GetOneTimeCodes(ctx, "example.com", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(codes.Entries).To(Equal([]protocol.OTPEntry{
				{Username: "alice", Source: "totp", Domain: "example.com", Code: "123456"},
				{Username: "", Source: "sms", Domain: "example.com", Code: "000111"},
			}))
		})
	})

	Describe("SavePassword", func() {
		It("announces the login and then stores the password", func() {
			serve(func(req *sealedRequest) interface{} {
				if req.Cmd == protocol.CmdSaveStage1LoginName {
					return map[string]interface{}{"STATUS": 0, "RequiresUserAuthenticationToFill": false}
				}
				return map[string]interface{}{"STATUS": 0}
			})
			Expect(client.SavePassword(ctx, "example.com", "alice", "hunter2")).To(Succeed())
			Expect(manager.requests).To(HaveLen(2))

			stage1 := manager.requests[0]
			Expect(stage1.Cmd).To(Equal(protocol.CmdSaveStage1LoginName))
			Expect(stage1.QID).To(Equal(protocol.QIDSaveStage1))
			Expect(stage1.Body).To(Equal(map[string]interface{}{"ACT": 2.0, "URL": "example.com", "USR": "alice"}))

			stage2 := manager.requests[1]
			Expect(stage2.Cmd).To(Equal(protocol.CmdNewAccount4URL))
			Expect(stage2.QID).To(Equal(protocol.QIDNewAccount))
			Expect(stage2.Body).To(Equal(map[string]interface{}{
				"ACT":  4.0,
				"URL":  "",
				"USR":  "",
				"PWD":  "",
				"NURL": "example.com",
				"NUSR": "alice",
				"NPWD": "hunter2",
			}))
		})

		It("stops if the first stage fails", func() {
			store.EXPECT().Load().Return(session.NewRecord(testToken, testSharedKey()), nil)
			conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(nil, protocol.ErrTimeout)
			err := client.SavePassword(ctx, "example.com", "alice", "hunter2")
			Expect(err).To(MatchError(protocol.ErrTimeout))
			Expect(protocol.MayHaveSucceeded(err)).To(BeTrue())
		})
	})

	Context("without a session", func() {
		It("does not contact the password manager", func() {
			store.EXPECT().Load().Return(&session.Record{}, nil)
			_, err := client.ListLoginNames(ctx, "example.com")
			Expect(err).To(MatchError(session.ErrNotAuthenticated))
			Expect(err.Error()).To(ContainSubstring("auth` to authenticate"))
		})

		It("returns store errors", func() {
			failure := errors.New("keyring locked")
			store.EXPECT().Load().Return(nil, failure)
			_, err := client.GetOneTimeCodes(ctx, "example.com", "alice")
			Expect(err).To(MatchError(failure))
		})
	})

	It("reports transport errors with the command name", func() {
		store.EXPECT().Load().Return(session.NewRecord(testToken, testSharedKey()), nil)
		conn.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(nil, protocol.ErrNotConnected)
		_, err := client.ListLoginNames(ctx, "example.com")
		Expect(err).To(MatchError(protocol.ErrNotConnected))
		Expect(err.Error()).To(HavePrefix("GetLoginNamesForURL request failed"))
	})
})
