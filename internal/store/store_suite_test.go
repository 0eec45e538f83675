// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskTrail Contributors

//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

var (
	container *postgres.PostgresContainer
	connStr   string
)

var _ = BeforeSuite(func() {
	ctx := context.Background()
	var err error
	container, err = postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("tasktrail_test"),
		postgres.WithUsername("tasktrail"),
		postgres.WithPassword("tasktrail"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})
