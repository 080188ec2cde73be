package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	if err := schema.Migrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		if pgContainer != nil {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
			}
		}
		os.Exit(1)
	}

	code := m.Run()

	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}

	os.Exit(code)
}

// initPGTestDB creates a store on a transaction that is rolled back when the
// test finishes, so tests never observe each other's rows
func initPGTestDB(t *testing.T) Store {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	return NewPGStore(tx)
}

func createTestInvestor(t *testing.T, s Store, mutate func(*CreateInvestorInput)) *schema.Investor {
	t.Helper()

	input := CreateInvestorInput{
		Name:   "John Doe",
		Email:  "john.doe@example.com",
		Type:   domain.InvestorTypeIndividual,
		Wallet: "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
	}
	if mutate != nil {
		mutate(&input)
	}

	investor, err := s.CreateInvestor(context.Background(), input)
	require.NoError(t, err)
	return investor
}

func createTestSubscription(t *testing.T, s Store, investorID string, mutate func(*CreateSubscriptionInput)) *schema.TokenSubscription {
	t.Helper()

	input := CreateSubscriptionInput{
		InvestorID: investorID,
		FiatAmount: decimal.NewFromInt(10000),
		Currency:   domain.CurrencyUSD,
	}
	if mutate != nil {
		mutate(&input)
	}

	subscription, err := s.CreateSubscription(context.Background(), input)
	require.NoError(t, err)
	return subscription
}

// allocateTestSubscription confirms and allocates in one step
func allocateTestSubscription(t *testing.T, s Store, subscriptionID string, amount decimal.Decimal) *schema.TokenSubscription {
	t.Helper()
	ctx := context.Background()

	_, err := s.ConfirmSubscription(ctx, subscriptionID)
	require.NoError(t, err)

	subscription, err := s.AllocateSubscription(ctx, subscriptionID, domain.TokenTypeERC20, amount)
	require.NoError(t, err)
	require.NotNil(t, subscription.AllocationID)
	return subscription
}

func TestBootstrap(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx))

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, DefaultProjectName, projects[0].Name)
	require.Len(t, projects[0].CapTables, 1)
	assert.Equal(t, DefaultCapTableName, projects[0].CapTables[0].Name)

	// Bootstrap is idempotent
	require.NoError(t, s.Bootstrap(ctx))
	projects, err = s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestCreateInvestor(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	t.Run("success with defaults", func(t *testing.T) {
		investor := createTestInvestor(t, s, nil)

		assert.Regexp(t, `^INV-[0-9a-f-]{36}$`, investor.InvestorID)
		assert.Equal(t, domain.KYCStatusNotStarted, investor.KYCStatus)
		assert.NotZero(t, investor.ID)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := s.CreateInvestor(ctx, CreateInvestorInput{
			Name:   "Bad Email",
			Email:  "not-an-email",
			Type:   domain.InvestorTypeIndividual,
			Wallet: "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
		})
		require.Error(t, err)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "email", vErr.Field)
	})

	t.Run("invalid wallet", func(t *testing.T) {
		_, err := s.CreateInvestor(ctx, CreateInvestorInput{
			Name:   "Bad Wallet",
			Email:  "bad.wallet@example.com",
			Type:   domain.InvestorTypeIndividual,
			Wallet: "742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
		})
		require.Error(t, err)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "wallet", vErr.Field)
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := s.CreateInvestor(ctx, CreateInvestorInput{
			Name:   "Bad Type",
			Email:  "bad.type@example.com",
			Type:   domain.InvestorType("Time Traveler"),
			Wallet: "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
		})
		require.Error(t, err)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "type", vErr.Field)
	})

	t.Run("duplicate external id", func(t *testing.T) {
		createTestInvestor(t, s, func(in *CreateInvestorInput) {
			in.InvestorID = "INV-fixed"
			in.Email = "dup.a@example.com"
		})
		_, err := s.CreateInvestor(ctx, CreateInvestorInput{
			Name:       "Dup",
			Email:      "dup.b@example.com",
			Type:       domain.InvestorTypeIndividual,
			Wallet:     "0x742d35Cc6634C0532925a3b844Bc9e7595f2bD4e",
			InvestorID: "INV-fixed",
		})
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("with cap table association", func(t *testing.T) {
		require.NoError(t, s.Bootstrap(ctx))
		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		capTableID := projects[0].CapTables[0].ID

		investor := createTestInvestor(t, s, func(in *CreateInvestorInput) {
			in.Email = "member@example.com"
			in.CapTableID = &capTableID
		})

		members, total, err := s.ListInvestorsByCapTable(ctx, capTableID, CapTableQueryFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, members, 1)
		assert.Equal(t, investor.InvestorID, members[0].InvestorID)
	})
}

func TestUpdateInvestor(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	investor := createTestInvestor(t, s, nil)

	t.Run("partial update", func(t *testing.T) {
		newName := "Jane Doe"
		newStatus := domain.KYCStatusVerified
		updated, err := s.UpdateInvestor(ctx, investor.InvestorID, UpdateInvestorInput{
			Name:      &newName,
			KYCStatus: &newStatus,
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", updated.Name)

		got, err := s.GetInvestor(ctx, investor.InvestorID)
		require.NoError(t, err)
		assert.Equal(t, "Jane Doe", got.Name)
		assert.Equal(t, domain.KYCStatusVerified, got.KYCStatus)
		// untouched fields survive
		assert.Equal(t, investor.Email, got.Email)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		bad := "nope"
		_, err := s.UpdateInvestor(ctx, investor.InvestorID, UpdateInvestorInput{Email: &bad})
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "email", vErr.Field)
	})

	t.Run("not found", func(t *testing.T) {
		name := "Ghost"
		_, err := s.UpdateInvestor(ctx, "INV-missing", UpdateInvestorInput{Name: &name})
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	investor := createTestInvestor(t, s, nil)
	subscription := createTestSubscription(t, s, investor.InvestorID, nil)

	assert.Regexp(t, `^SUB-\d+$`, subscription.SubscriptionID)
	assert.Equal(t, domain.StatePending, subscription.State)

	t.Run("allocate before confirm refused", func(t *testing.T) {
		_, err := s.AllocateSubscription(ctx, subscription.SubscriptionID, domain.TokenTypeERC20, decimal.NewFromInt(1000))
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("confirm then re-confirm", func(t *testing.T) {
		confirmed, err := s.ConfirmSubscription(ctx, subscription.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateConfirmed, confirmed.State)

		again, err := s.ConfirmSubscription(ctx, subscription.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateConfirmed, again.State)
	})

	t.Run("allocate", func(t *testing.T) {
		allocated, err := s.AllocateSubscription(ctx, subscription.SubscriptionID, domain.TokenTypeERC20, decimal.NewFromInt(1000))
		require.NoError(t, err)
		assert.Equal(t, domain.StateAllocated, allocated.State)
		require.NotNil(t, allocated.TokenAmount)
		assert.True(t, allocated.TokenAmount.Equal(decimal.NewFromInt(1000)))
		require.NotNil(t, allocated.Allocation)
		assert.False(t, allocated.Allocation.Distributed)
	})

	t.Run("remove allocation journals and resets", func(t *testing.T) {
		before, err := s.GetSubscription(ctx, subscription.SubscriptionID)
		require.NoError(t, err)
		allocationID := *before.AllocationID

		reset, err := s.RemoveAllocation(ctx, subscription.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateConfirmed, reset.State)
		assert.Nil(t, reset.TokenType)
		assert.Nil(t, reset.TokenAmount)
		assert.Nil(t, reset.AllocationID)

		// the allocation row is gone but the journal keeps its history
		changes, err := s.GetChanges(ctx, 0, 100)
		require.NoError(t, err)
		var journaled bool
		for _, change := range changes {
			if change.Entity == domain.EntityAllocation &&
				change.Action == domain.ActionDeallocated &&
				change.EntityID == fmt.Sprintf("%d", allocationID) {
				journaled = true
				assert.NotEmpty(t, change.Meta)
			}
		}
		assert.True(t, journaled, "expected a deallocated journal entry")
	})

	t.Run("remove allocation twice refused", func(t *testing.T) {
		_, err := s.RemoveAllocation(ctx, subscription.SubscriptionID)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("distribute then delete refused", func(t *testing.T) {
		allocated, err := s.AllocateSubscription(ctx, subscription.SubscriptionID, domain.TokenTypeERC20, decimal.NewFromInt(1000))
		require.NoError(t, err)

		result, err := s.DistributeTokens(ctx, []uint64{*allocated.AllocationID})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Distributed)
		require.Len(t, result.Results, 1)
		assert.True(t, result.Results[0].Success)
		assert.Len(t, result.Results[0].TxHash, 66)

		got, err := s.GetSubscription(ctx, subscription.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateDistributed, got.State)
		require.NotNil(t, got.Allocation)
		assert.True(t, got.Allocation.Distributed)
		require.NotNil(t, got.Allocation.DistributionDate)

		err = s.DeleteSubscription(ctx, subscription.SubscriptionID)
		require.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestDeleteSubscription(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	investor := createTestInvestor(t, s, nil)
	subscription := createTestSubscription(t, s, investor.InvestorID, nil)
	allocateTestSubscription(t, s, subscription.SubscriptionID, decimal.NewFromInt(500))

	require.NoError(t, s.DeleteSubscription(ctx, subscription.SubscriptionID))

	_, err := s.GetSubscription(ctx, subscription.SubscriptionID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// deletion is journaled with the prior allocation preserved
	changes, err := s.GetChanges(ctx, 0, 100)
	require.NoError(t, err)
	var journaled bool
	for _, change := range changes {
		if change.Entity == domain.EntitySubscription &&
			change.Action == domain.ActionDeleted &&
			change.EntityID == subscription.SubscriptionID {
			journaled = true
			assert.NotEmpty(t, change.Meta)
		}
	}
	assert.True(t, journaled, "expected a deleted journal entry")
}

// Runs against the shared database instead of a rolled-back transaction so the
// two stores hold separate sessions and can actually contend for row locks.
func TestDeleteSubscriptionBlocksOnInFlightDistribution(t *testing.T) {
	ctx := context.Background()
	s := NewPGStore(testDB)

	investor := createTestInvestor(t, s, func(in *CreateInvestorInput) {
		in.Name = "Lock Contender"
		in.Email = "lock.contender@example.com"
		in.Wallet = "0x1f9090aaE28b8a3dCeaDf281B0F12828e676c326"
	})
	subscription := createTestSubscription(t, s, investor.InvestorID, func(in *CreateSubscriptionInput) {
		in.SubscriptionID = "SUB-lock-contention"
	})
	allocated := allocateTestSubscription(t, s, subscription.SubscriptionID, decimal.NewFromInt(250))

	t.Cleanup(func() {
		testDB.Where("entity_id IN ?", []string{
			investor.InvestorID,
			subscription.SubscriptionID,
			fmt.Sprintf("%d", *allocated.AllocationID),
		}).Delete(&schema.ChangesJournal{})
		testDB.Where("subscription_id = ?", subscription.SubscriptionID).Delete(&schema.TokenSubscription{})
		testDB.Where("id = ?", *allocated.AllocationID).Delete(&schema.TokenAllocation{})
		testDB.Where("investor_id = ?", investor.InvestorID).Delete(&schema.Investor{})
	})

	// Distribute in a transaction that stays open, so the subscription row
	// lock is still held when the delete arrives.
	distributeTx := testDB.Begin()
	require.NoError(t, distributeTx.Error)
	result, err := NewPGStore(distributeTx).DistributeTokens(ctx, []uint64{*allocated.AllocationID})
	require.NoError(t, err)
	require.Equal(t, 1, result.Distributed)

	deleteDone := make(chan error, 1)
	go func() {
		deleteDone <- s.DeleteSubscription(ctx, subscription.SubscriptionID)
	}()

	// The delete must wait on the locked row instead of reading the
	// pre-distribution state.
	select {
	case err := <-deleteDone:
		t.Fatalf("delete completed while the distribution held the row lock: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, distributeTx.Commit().Error)

	select {
	case err := <-deleteDone:
		require.ErrorIs(t, err, domain.ErrConflict)
	case <-time.After(5 * time.Second):
		t.Fatal("delete never completed after the distribution committed")
	}

	got, err := s.GetSubscription(ctx, subscription.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateDistributed, got.State)
}

func TestDistributeTokensBatch(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	investor := createTestInvestor(t, s, nil)

	var allocationIDs []uint64
	for i := 0; i < 3; i++ {
		subscription := createTestSubscription(t, s, investor.InvestorID, func(in *CreateSubscriptionInput) {
			in.SubscriptionID = fmt.Sprintf("SUB-batch-%d", i)
		})
		allocated := allocateTestSubscription(t, s, subscription.SubscriptionID, decimal.NewFromInt(100))
		allocationIDs = append(allocationIDs, *allocated.AllocationID)
	}

	// pre-distribute the middle item so the batch hits a failure partway through
	pre, err := s.DistributeTokens(ctx, []uint64{allocationIDs[1]})
	require.NoError(t, err)
	require.Equal(t, 1, pre.Distributed)

	result, err := s.DistributeTokens(ctx, allocationIDs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Distributed)
	require.Len(t, result.Results, 3)

	assert.True(t, result.Results[0].Success)
	assert.False(t, result.Results[1].Success)
	assert.NotEmpty(t, result.Results[1].Error)
	assert.True(t, result.Results[2].Success)

	// the failure in the middle does not roll back its neighbors
	for _, idx := range []int{0, 2} {
		subscription, err := s.GetSubscription(ctx, fmt.Sprintf("SUB-batch-%d", idx))
		require.NoError(t, err)
		assert.Equal(t, domain.StateDistributed, subscription.State)
	}
}

func TestDistributeTokensMissingAllocation(t *testing.T) {
	s := initPGTestDB(t)

	result, err := s.DistributeTokens(context.Background(), []uint64{999999})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Distributed)
	require.Len(t, result.Results, 1)
	assert.False(t, result.Results[0].Success)
	assert.Contains(t, result.Results[0].Error, "not found")
}

func TestCheckKYCExpirations(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()
	now := time.Now()

	yesterday := now.Add(-24 * time.Hour)
	nextYear := now.Add(365 * 24 * time.Hour)

	lapsed := createTestInvestor(t, s, func(in *CreateInvestorInput) {
		in.Email = "lapsed@example.com"
		in.KYCStatus = domain.KYCStatusVerified
		in.KYCExpiryDate = &yesterday
	})
	current := createTestInvestor(t, s, func(in *CreateInvestorInput) {
		in.Email = "current@example.com"
		in.KYCStatus = domain.KYCStatusVerified
		in.KYCExpiryDate = &nextYear
	})
	pending := createTestInvestor(t, s, func(in *CreateInvestorInput) {
		in.Email = "pending@example.com"
		in.KYCStatus = domain.KYCStatusPending
		in.KYCExpiryDate = &yesterday
	})

	count, err := s.CheckKYCExpirations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetInvestor(ctx, lapsed.InvestorID)
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusExpired, got.KYCStatus)

	got, err = s.GetInvestor(ctx, current.InvestorID)
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusVerified, got.KYCStatus)

	got, err = s.GetInvestor(ctx, pending.InvestorID)
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusPending, got.KYCStatus)

	// already-expired investors are not flipped again
	count, err = s.CheckKYCExpirations(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProjectGuards(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx))
	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	t.Run("last project delete refused", func(t *testing.T) {
		err := s.DeleteProject(ctx, projects[0].ID)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("delete with sibling cascades", func(t *testing.T) {
		second, err := s.CreateProject(ctx, "Series B", "follow-on round")
		require.NoError(t, err)
		require.Len(t, second.CapTables, 1)

		require.NoError(t, s.DeleteProject(ctx, second.ID))

		_, err = s.GetCapTable(ctx, second.CapTables[0].ID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCapTableGuards(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx))
	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	projectID := projects[0].ID
	firstCapTableID := projects[0].CapTables[0].ID

	t.Run("last cap table delete refused", func(t *testing.T) {
		err := s.DeleteCapTable(ctx, firstCapTableID)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("delete with sibling removes memberships not investors", func(t *testing.T) {
		second, err := s.CreateCapTable(ctx, projectID, "Secondary", "")
		require.NoError(t, err)

		investor := createTestInvestor(t, s, nil)
		require.NoError(t, s.AddInvestorToCapTable(ctx, investor.InvestorID, second.ID))

		require.NoError(t, s.DeleteCapTable(ctx, second.ID))

		_, err = s.GetCapTable(ctx, second.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)

		// the investor itself survives
		_, err = s.GetInvestor(ctx, investor.InvestorID)
		require.NoError(t, err)
	})
}

func TestCapTableMembership(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.Bootstrap(ctx))
	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	capTableID := projects[0].CapTables[0].ID

	investor := createTestInvestor(t, s, func(in *CreateInvestorInput) {
		in.KYCStatus = domain.KYCStatusVerified
	})
	other := createTestInvestor(t, s, func(in *CreateInvestorInput) {
		in.Email = "other@example.com"
		in.Type = domain.InvestorTypeVentureCapital
	})

	require.NoError(t, s.AddInvestorToCapTable(ctx, investor.InvestorID, capTableID))
	require.NoError(t, s.AddInvestorToCapTable(ctx, other.InvestorID, capTableID))

	// re-adding a member is a no-op
	require.NoError(t, s.AddInvestorToCapTable(ctx, investor.InvestorID, capTableID))

	members, total, err := s.ListInvestorsByCapTable(ctx, capTableID, CapTableQueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, members, 2)

	t.Run("filter by kyc status", func(t *testing.T) {
		verified := domain.KYCStatusVerified
		members, total, err := s.ListInvestorsByCapTable(ctx, capTableID, CapTableQueryFilter{KYCStatus: &verified})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, members, 1)
		assert.Equal(t, investor.InvestorID, members[0].InvestorID)
	})

	t.Run("remove membership keeps subscriptions", func(t *testing.T) {
		createTestSubscription(t, s, other.InvestorID, nil)

		require.NoError(t, s.RemoveInvestorFromCapTable(ctx, other.InvestorID, capTableID))

		got, err := s.GetInvestor(ctx, other.InvestorID)
		require.NoError(t, err)
		assert.Len(t, got.Subscriptions, 1)
	})

	t.Run("remove non-member", func(t *testing.T) {
		err := s.RemoveInvestorFromCapTable(ctx, other.InvestorID, capTableID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestGetChanges(t *testing.T) {
	s := initPGTestDB(t)
	ctx := context.Background()

	investor := createTestInvestor(t, s, nil)
	subscription := createTestSubscription(t, s, investor.InvestorID, nil)
	_, err := s.ConfirmSubscription(ctx, subscription.SubscriptionID)
	require.NoError(t, err)

	changes, err := s.GetChanges(ctx, 0, 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(changes), 3)

	for i := 1; i < len(changes); i++ {
		assert.Greater(t, changes[i].Cursor, changes[i-1].Cursor, "cursor must be monotonic")
		assert.NotEmpty(t, changes[i].EventID)
	}

	t.Run("after cursor", func(t *testing.T) {
		tail, err := s.GetChanges(ctx, changes[0].Cursor, 100)
		require.NoError(t, err)
		assert.Len(t, tail, len(changes)-1)
	})
}
