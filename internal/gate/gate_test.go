package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/wallet"
)

type MockDebiter struct{ mock.Mock }

func (m *MockDebiter) DeductTokens(ctx context.Context, req wallet.DebitRequest) (*wallet.DebitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.DebitResult), args.Error(1)
}

func TestChargeForService(t *testing.T) {
	tests := []struct {
		name    string
		result  *wallet.DebitResult
		err     error
		want    Outcome
		balance int
	}{
		{"charged", &wallet.DebitResult{NewBalance: 55, Cost: 5}, nil, Charged, 55},
		{"insufficient", nil, wallet.ErrInsufficientTokens, InsufficientFunds, 0},
		{"not configured", nil, fmt.Errorf("%w: %q", wallet.ErrServiceNotConfigured, "rag"), Misconfigured, 0},
		{"key reused", nil, wallet.ErrIdempotencyKeyReused, Misconfigured, 0},
		{"store down", nil, errors.New("connection refused"), TransientFailure, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDebiter)
			d.On("DeductTokens", mock.Anything, mock.Anything).Return(tt.result, tt.err)

			res := New(d).ChargeForService(context.Background(), "user-1", "text_interview", nil, "")
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.balance, res.NewBalance)
		})
	}
}

func TestChargeForService_NoIdentity(t *testing.T) {
	d := new(MockDebiter)

	res := New(d).ChargeForService(context.Background(), "", "text_interview", nil, "")
	assert.Equal(t, Unauthorized, res.Outcome)
	d.AssertNotCalled(t, "DeductTokens", mock.Anything, mock.Anything)
}

func gatedRouter(g *Gate, userID string, reached *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			auth.SetUserID(c, userID)
		}
		c.Next()
	})
	r.POST("/interview/create", g.Require("text_interview"), func(c *gin.Context) {
		*reached = true
		service, balance, _ := Charge(c)
		c.JSON(http.StatusOK, gin.H{"service": service, "balance": balance})
	})
	return r
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		result      *wallet.DebitResult
		err         error
		wantStatus  int
		wantBody    string
		wantReached bool
	}{
		{"charged", "user-1", &wallet.DebitResult{NewBalance: 55}, nil, http.StatusOK, `"balance":55`, true},
		{"unauthorized", "", nil, nil, http.StatusUnauthorized, msgUnauthorized, false},
		{"insufficient", "user-1", nil, wallet.ErrInsufficientTokens, http.StatusPaymentRequired, msgInsufficientFunds, false},
		{"misconfigured", "user-1", nil, wallet.ErrServiceNotConfigured, http.StatusServiceUnavailable, msgMisconfigured, false},
		{"transient", "user-1", nil, errors.New("timeout"), http.StatusServiceUnavailable, msgTransient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDebiter)
			if tt.userID != "" {
				d.On("DeductTokens", mock.Anything, mock.Anything).Return(tt.result, tt.err)
			}

			reached := false
			w := httptest.NewRecorder()
			gatedRouter(New(d), tt.userID, &reached).
				ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/interview/create", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Equal(t, tt.wantReached, reached)
			if tt.wantReached {
				assert.Equal(t, "55", w.Header().Get(BalanceHeader))
			} else {
				assert.Empty(t, w.Header().Get(BalanceHeader))
			}
		})
	}
}

func TestRequire_PassesMetadataAndKey(t *testing.T) {
	d := new(MockDebiter)
	var got wallet.DebitRequest
	d.On("DeductTokens", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(wallet.DebitRequest) }).
		Return(&wallet.DebitResult{NewBalance: 9}, nil)

	reached := false
	req := httptest.NewRequest(http.MethodPost, "/interview/create", nil)
	req.Header.Set("User-Agent", "gate-test")
	req.Header.Set(wallet.IdempotencyHeader, "req-42")

	w := httptest.NewRecorder()
	gatedRouter(New(d), "user-1", &reached).ServeHTTP(w, req)

	require.True(t, reached)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "text_interview", got.ServiceName)
	assert.Equal(t, "req-42", got.IdempotencyKey)
	assert.Equal(t, "gate-test", got.Metadata["user_agent"])
	assert.Equal(t, "/interview/create", got.Metadata["path"])
	assert.Equal(t, "text_interview", got.Metadata["service"])
	assert.NotEmpty(t, got.Metadata["timestamp"])
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "charged", Charged.String())
	assert.Equal(t, "unauthorized", Unauthorized.String())
	assert.Equal(t, "insufficient_funds", InsufficientFunds.String())
	assert.Equal(t, "misconfigured", Misconfigured.String())
	assert.Equal(t, "transient_failure", TransientFailure.String())
}

func TestCharge_NotCharged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, _, ok := Charge(c)
	assert.False(t, ok)
}
