// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/syncgate/internal/auth"
	"github.com/holomush/syncgate/internal/auth/postgres"
)

var _ = Describe("CredentialRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.CredentialRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewCredentialRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE users`)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports unknown users as not found", func() {
		_, err := repo.Get(ctx, "ghost")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("keeps the first credential for a username", func() {
		created, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		created, err = repo.CreateIfAbsent(ctx, "alice", "hash2")
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())

		hash, err := repo.Get(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).To(Equal("hash1"))
	})

	It("lets exactly one concurrent writer win", func() {
		var wg sync.WaitGroup
		var wins atomic.Int32
		for range 16 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				created, err := repo.CreateIfAbsent(ctx, "alice", "hash")
				Expect(err).NotTo(HaveOccurred())
				if created {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(wins.Load()).To(Equal(int32(1)))
	})

	It("deletes idempotently", func() {
		_, err := repo.CreateIfAbsent(ctx, "alice", "hash1")
		Expect(err).NotTo(HaveOccurred())

		Expect(repo.Delete(ctx, "alice")).To(Succeed())
		Expect(repo.Delete(ctx, "alice")).To(Succeed())

		_, err = repo.Get(ctx, "alice")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
