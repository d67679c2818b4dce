// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/coder/websocket"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/syncgate/internal/auth"
	authpg "github.com/holomush/syncgate/internal/auth/postgres"
	"github.com/holomush/syncgate/internal/relay"
	"github.com/holomush/syncgate/internal/syncpeer"
	"github.com/holomush/syncgate/internal/wire"
)

var _ = Describe("Authenticated sync over postgres credentials", func() {
	var (
		ctx       context.Context
		creds     *auth.CredentialStore
		peer      *syncpeer.SuperPeer
		updates   *syncpeer.MemoryStore
		server    *httptest.Server
		transport *http.Transport
		client    *http.Client
	)

	startRelay := func(policy relay.Policy) {
		authorizer, err := relay.NewAuthorizer(relay.AuthorizerConfig{
			Verifier: creds,
			Policy:   policy,
			Logger:   discardLogger(),
		})
		Expect(err).NotTo(HaveOccurred())

		peer = syncpeer.NewSuperPeer(updates)
		srv, err := relay.NewServer(relay.ServerConfig{
			Authorizer: authorizer,
			Connect:    relay.SuperPeerConnector(peer),
			Logger:     discardLogger(),
		})
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(srv)
	}

	dial := func(protocols ...string) (*websocket.Conn, *http.Response, error) {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		return websocket.Dial(dialCtx, url, &websocket.DialOptions{
			HTTPClient:   client,
			Subprotocols: protocols,
		})
	}

	send := func(conn *websocket.Conn, frame []byte, err error) {
		Expect(err).NotTo(HaveOccurred())
		Expect(conn.Write(ctx, websocket.MessageBinary, frame)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		env.truncateUsers()

		hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		creds, err = auth.NewCredentialStore(authpg.NewCredentialRepository(env.pool), hasher)
		Expect(err).NotTo(HaveOccurred())
		updates = syncpeer.NewMemoryStore()

		transport = &http.Transport{}
		client = &http.Client{Transport: transport}
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
		transport.CloseIdleConnections()
	})

	Describe("CredentialStore", func() {
		It("keeps the first password when a user is added twice", func() {
			created, err := creds.AddUser(ctx, "alice", "first")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			created, err = creds.AddUser(ctx, "alice", "second")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			Expect(creds.VerifyUser(ctx, "alice", "first")).To(BeTrue())
			Expect(creds.VerifyUser(ctx, "alice", "second")).To(BeFalse())
		})

		It("forgets removed users", func() {
			_, err := creds.AddUser(ctx, "alice", "secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.RemoveUser(ctx, "alice")).To(Succeed())
			Expect(creds.VerifyUser(ctx, "alice", "secret")).To(BeFalse())
			Expect(creds.RemoveUser(ctx, "alice")).To(Succeed())
		})
	})

	Describe("token policy", func() {
		BeforeEach(func() {
			_, err := creds.AddUser(ctx, "alice", "secret")
			Expect(err).NotTo(HaveOccurred())
			startRelay(relay.PolicyToken)
		})

		It("rejects a bad token with 401 before upgrading", func() {
			_, resp, err := dial(relay.Subprotocol, "alice-wrong")
			Expect(err).To(HaveOccurred())
			Expect(resp).NotTo(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("relays updates from an authenticated writer", func() {
			reader, _, err := dial(relay.Subprotocol, "alice-secret")
			Expect(err).NotTo(HaveOccurred())
			defer reader.CloseNow()
			writer, _, err := dial(relay.Subprotocol, "alice-secret")
			Expect(err).NotTo(HaveOccurred())
			defer writer.CloseNow()

			frame, err := wire.EncodePassthrough(syncpeer.KindSubscribe, map[string]string{wire.FieldEntityID: "doc"})
			send(reader, frame, err)
			Eventually(func() int { return peer.Subscribers("doc") }).Should(Equal(1))

			frame, err = wire.EncodeSendUpdate("doc", []byte{1, 2, 3})
			send(writer, frame, err)

			readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_, data, err := reader.Read(readCtx)
			Expect(err).NotTo(HaveOccurred())
			update, err := wire.DecodeServerUpdate(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(update.EntityID).To(Equal("doc"))
			Expect(update.Update).To(Equal([]byte{1, 2, 3}))
		})
	})

	Describe("message policy", func() {
		BeforeEach(func() {
			_, err := creds.AddUser(ctx, "alice", "secret")
			Expect(err).NotTo(HaveOccurred())
			startRelay(relay.PolicyMessage)
		})

		It("only applies updates after an in-stream authenticate", func() {
			conn, _, err := dial()
			Expect(err).NotTo(HaveOccurred())
			defer conn.CloseNow()

			frame, err := wire.EncodeSendUpdate("doc", []byte("dropped"))
			send(conn, frame, err)

			frame, err = wire.EncodeAuthenticate("alice", "secret")
			send(conn, frame, err)

			frame, err = wire.EncodeSendUpdate("doc", []byte("kept"))
			send(conn, frame, err)

			Eventually(func() [][]byte {
				list, _ := updates.List(ctx, "doc")
				out := make([][]byte, 0, len(list))
				for _, u := range list {
					out = append(out, u.Payload)
				}
				return out
			}).WithTimeout(5 * time.Second).Should(Equal([][]byte{[]byte("kept")}))
		})
	})
})
