package gate

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/api"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/auth"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/metrics"
	"github.com/Himu336/MockManch-Backend-Gateway/internal/wallet"
)

type Outcome int

const (
	Charged Outcome = iota
	Unauthorized
	InsufficientFunds
	Misconfigured
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Charged:
		return "charged"
	case Unauthorized:
		return "unauthorized"
	case InsufficientFunds:
		return "insufficient_funds"
	case Misconfigured:
		return "misconfigured"
	default:
		return "transient_failure"
	}
}

const (
	BalanceHeader = "X-Token-Balance"
	balanceKey    = "token_balance"
	serviceKey    = "charged_service"

	msgUnauthorized      = "Authentication required. Please include a valid Authorization token."
	msgInsufficientFunds = "You do not have enough tokens. Please purchase more tokens or upgrade your plan."
	msgMisconfigured     = "Service configuration error. Please contact support."
	msgTransient         = "Service temporarily unavailable. Please try again later."
)

type Result struct {
	Outcome    Outcome
	NewBalance int
	Err        error
}

// Debiter is the part of the wallet manager the gate needs.
type Debiter interface {
	DeductTokens(ctx context.Context, req wallet.DebitRequest) (*wallet.DebitResult, error)
}

// Gate charges a service's token cost before the gated handler runs.
type Gate struct {
	wallets Debiter
}

func New(wallets Debiter) *Gate {
	return &Gate{wallets: wallets}
}

func (g *Gate) ChargeForService(ctx context.Context, userID, serviceName string, metadata map[string]interface{}, idempotencyKey string) Result {
	if userID == "" {
		return Result{Outcome: Unauthorized}
	}

	res, err := g.wallets.DeductTokens(ctx, wallet.DebitRequest{
		UserID:         userID,
		ServiceName:    serviceName,
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
	})
	switch {
	case err == nil:
		return Result{Outcome: Charged, NewBalance: res.NewBalance}
	case errors.Is(err, wallet.ErrInsufficientTokens):
		return Result{Outcome: InsufficientFunds, Err: err}
	case errors.Is(err, wallet.ErrServiceNotConfigured), errors.Is(err, wallet.ErrIdempotencyKeyReused):
		return Result{Outcome: Misconfigured, Err: err}
	default:
		return Result{Outcome: TransientFailure, Err: err}
	}
}

// Require aborts the request unless serviceName was charged to the caller.
func (g *Gate) Require(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c)

		meta := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"user_agent": c.Request.UserAgent(),
			"service":    serviceName,
			"path":       c.FullPath(),
		}
		key := c.GetHeader(wallet.IdempotencyHeader)
		if key != "" {
			meta["idempotency_key"] = key
		}

		res := g.ChargeForService(c.Request.Context(), userID, serviceName, meta, key)
		metrics.RecordGateOutcome(serviceName, res.Outcome.String())

		switch res.Outcome {
		case Charged:
			c.Set(balanceKey, res.NewBalance)
			c.Set(serviceKey, serviceName)
			c.Header(BalanceHeader, strconv.Itoa(res.NewBalance))
			c.Next()
		case Unauthorized:
			api.Abort(c, http.StatusUnauthorized, msgUnauthorized)
		case InsufficientFunds:
			logger.Info("Charge declined", "user_id", userID, "service", serviceName)
			api.Abort(c, http.StatusPaymentRequired, msgInsufficientFunds)
		case Misconfigured:
			logger.WithError(res.Err).WithFields(map[string]interface{}{
				"user_id": userID,
				"service": serviceName,
			}).Error("Charge gate misconfigured")
			api.Abort(c, http.StatusServiceUnavailable, msgMisconfigured)
		default:
			logger.WithError(res.Err).WithFields(map[string]interface{}{
				"user_id": userID,
				"service": serviceName,
			}).Error("Charge gate failed")
			api.Abort(c, http.StatusServiceUnavailable, msgTransient)
		}
	}
}

// Charge reports the service the gate charged this request for and the
// balance left afterwards. ok is false when no charge was taken.
func Charge(c *gin.Context) (service string, balance int, ok bool) {
	service = c.GetString(serviceKey)
	v, found := c.Get(balanceKey)
	if service == "" || !found {
		return "", 0, false
	}
	balance, ok = v.(int)
	return service, balance, ok
}
