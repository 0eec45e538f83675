// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

//go:build integration

package store_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tasktrail/tasktrail/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var migrator *store.Migrator

	BeforeAll(func() {
		var err error
		migrator, err = store.NewMigrator(connStr, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = migrator.Close() })
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Version).To(Equal(uint(1)))
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Dirty).To(BeFalse())
	})

	It("is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
	})

	It("creates a usable users table", func() {
		pool, err := store.NewPool(context.Background(), connStr, 2)
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		_, err = pool.Exec(context.Background(),
			`INSERT INTO users (id, displayname, username, email, password_hash, created_at)
			 VALUES (gen_random_uuid(), 'Ann Lee', 'annlee', 'ann@example.com', 'h', 1700000000)`)
		Expect(err).NotTo(HaveOccurred())

		_, err = pool.Exec(context.Background(),
			`INSERT INTO users (id, displayname, username, email, password_hash, created_at)
			 VALUES (gen_random_uuid(), 'Ann Two', 'annlee', 'ann2@example.com', 'h', 1700000000)`)
		Expect(err).To(MatchError(ContainSubstring("users_username_key")))
	})

	It("steps down and back up", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())

		Expect(migrator.Steps(1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("forces a version without running migrations", func() {
		Expect(migrator.Force(1)).To(Succeed())
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
	})
})
