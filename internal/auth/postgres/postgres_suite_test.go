// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tasktrail/tasktrail/internal/store"
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Postgres Suite")
}

var (
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
)

var _ = BeforeSuite(func() {
	ctx := context.Background()
	var err error
	container, err = tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("tasktrail_test"),
		tcpostgres.WithUsername("tasktrail"),
		tcpostgres.WithPassword("tasktrail"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr, nil)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = store.NewPool(ctx, connStr, store.DefaultMaxConns)
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

func truncateUsers(ctx context.Context) {
	_, err := pool.Exec(ctx, "TRUNCATE users")
	Expect(err).NotTo(HaveOccurred())
}
