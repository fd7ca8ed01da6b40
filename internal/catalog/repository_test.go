package catalog

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCatalogMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

var planColumns = []string{"plan_id", "name", "tokens", "price", "duration_days", "is_recurring", "created_at", "updated_at"}

func TestGetCost(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT cost FROM wallet.services_token_costs WHERE service_name = $1")).
		WithArgs("text_interview").
		WillReturnRows(sqlmock.NewRows([]string{"cost"}).AddRow(5))

	cost, err := repo.GetCost(context.Background(), "text_interview")
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCost_UnknownService(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT cost FROM wallet.services_token_costs WHERE service_name = $1")).
		WithArgs("unknown_service").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCost(context.Background(), "unknown_service")
	assert.ErrorIs(t, err, ErrServiceNotConfigured)
	assert.Contains(t, err.Error(), "unknown_service")
}

func TestUpsertCost(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet.services_token_costs (service_name, cost)")).
		WithArgs("ai_chat", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertCost(context.Background(), "ai_chat", 1))
	assert.ErrorIs(t, repo.UpsertCost(context.Background(), "ai_chat", 0), ErrInvalidCost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPlans_OrderedByPrice(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet.subscription_plans")).
		WillReturnRows(sqlmock.NewRows(planColumns).
			AddRow("7f1c0f0e-8a8b-4b1e-9d6a-000000000001", "Free Plan", 20, "0.00", 0, false, now, now).
			AddRow("7f1c0f0e-8a8b-4b1e-9d6a-000000000003", "Pro Monthly", 500, "19.99", 30, true, now, now))

	plans, err := repo.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Free Plan", plans[0].Name)
	assert.True(t, plans[1].Price.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, plans[1].IsRecurring)
}

func TestGetPlan(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	planID := "7f1c0f0e-8a8b-4b1e-9d6a-000000000003"
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE plan_id = $1")).
		WithArgs(planID).
		WillReturnRows(sqlmock.NewRows(planColumns).AddRow(planID, "Pro Monthly", 500, "19.99", 30, true, now, now))

	p, err := repo.GetPlan(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, 500, p.Tokens)
}

func TestGetPlan_NotFound(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	planID := "7f1c0f0e-8a8b-4b1e-9d6a-0000000000ff"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE plan_id = $1")).
		WithArgs(planID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPlan(context.Background(), planID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestGetPlan_MalformedIDSkipsQuery(t *testing.T) {
	repo, mock, close := setupCatalogMock(t)
	defer close()

	_, err := repo.GetPlan(context.Background(), "pro-500")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
