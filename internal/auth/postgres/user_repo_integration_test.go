// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tasktrail/tasktrail/internal/auth"
	"github.com/tasktrail/tasktrail/internal/auth/postgres"
	"github.com/tasktrail/tasktrail/pkg/errutil"
)

func newUser(username string) *auth.User {
	u, err := auth.NewUser(auth.UserCredentials{
		DisplayName: "Ann Lee",
		Username:    username,
		Email:       username + "@example.com",
		Password:    "Abcdef1!",
	}, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", time.Now())
	Expect(err).NotTo(HaveOccurred())
	return u
}

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncateUsers(ctx)
		repo = postgres.NewUserRepository(pool)
	})

	Describe("Insert", func() {
		It("returns the stored public user", func() {
			u := newUser("annlee")
			got, err := repo.Insert(ctx, u)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(u.Public()))
		})

		It("reports a duplicate username", func() {
			_, err := repo.Insert(ctx, newUser("annlee"))
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.Insert(ctx, newUser("annlee"))
			Expect(err).To(HaveOccurred())
			Expect(errutil.Code(err)).To(Equal("USER_ALREADY_EXISTS"))
		})

		It("admits exactly one of several racing registrations", func() {
			const racers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					if _, err := repo.Insert(ctx, newUser("racer")); err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			Expect(succeeded).To(Equal(1))
		})
	})

	Describe("FindByUsername", func() {
		It("returns the full row including the hash", func() {
			u := newUser("annlee")
			_, err := repo.Insert(ctx, u)
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.FindByUsername(ctx, "annlee")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(u.ID))
			Expect(got.PasswordHash).To(Equal(u.PasswordHash))
			Expect(got.CreatedAt.Unix()).To(Equal(u.CreatedAt.Unix()))
		})

		It("reports a missing user as not found", func() {
			_, err := repo.FindByUsername(ctx, "nobody")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("matches usernames exactly", func() {
			_, err := repo.Insert(ctx, newUser("annlee"))
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.FindByUsername(ctx, "AnnLee")
			Expect(err).To(MatchError(auth.ErrNotFound))
		})
	})
})
