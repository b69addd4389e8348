package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chronolot/chronolot/internal/auth"
	"github.com/chronolot/chronolot/internal/custody"
	"github.com/chronolot/chronolot/internal/entries"
	"github.com/chronolot/chronolot/internal/raffle"
	"github.com/chronolot/chronolot/internal/registry"
	"github.com/chronolot/chronolot/internal/resolver"
	"github.com/chronolot/chronolot/internal/settlement"
	"github.com/chronolot/chronolot/pkg/money"
)

type createRaffleRequest struct {
	Beneficiary uuid.UUID `json:"beneficiary" binding:"required"`
	EntryFee    string    `json:"entry_fee" binding:"required"`
}

type enterRequest struct {
	Guess int64 `json:"guess" binding:"required"`
}

type winningTimeRequest struct {
	Time int64 `json:"time" binding:"required"`
}

type manualSettleRequest struct {
	ExactTime int64 `json:"exact_time" binding:"required"`
}

type feeBpsRequest struct {
	Bps int64 `json:"bps"`
}

func (g *Gateway) caller(c *gin.Context) uuid.UUID {
	return c.MustGet("caller_id").(uuid.UUID)
}

func (g *Gateway) createRaffle(c *gin.Context) {
	var req createRaffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	entryFee, err := decimal.NewFromString(req.EntryFee)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry_fee"})
		return
	}

	id, err := g.registry.Create(c.Request.Context(), req.Beneficiary, entryFee)
	if err != nil {
		g.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"raffle_id": id})
}

func (g *Gateway) enter(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	slot, err := g.entries.Enter(c.Request.Context(), id, req.Guess, g.caller(c))
	if err != nil {
		g.renderError(c, err)
		return
	}

	g.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusCreated, gin.H{"raffle_id": id, "rounded_guess": slot})
}

func (g *Gateway) closeRaffle(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	if err := g.engine.Close(c.Request.Context(), id, g.caller(c)); err != nil {
		g.renderError(c, err)
		return
	}

	g.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "is_open": false})
}

func (g *Gateway) setWinningTime(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	var req winningTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := g.engine.SetWinningTime(c.Request.Context(), id, g.caller(c), req.Time); err != nil {
		g.renderError(c, err)
		return
	}

	g.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "winning_time": raffle.RoundDown(req.Time)})
}

func (g *Gateway) settle(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	if err := g.engine.Settle(c.Request.Context(), id); err != nil {
		g.renderError(c, err)
		return
	}

	g.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "settled": true})
}

func (g *Gateway) manualSettle(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	var req manualSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := g.engine.ManualSettle(c.Request.Context(), id, g.caller(c), req.ExactTime); err != nil {
		g.renderError(c, err)
		return
	}

	g.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "settled": true})
}

func (g *Gateway) retryPayouts(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	if err := g.engine.RetryPayouts(c.Request.Context(), id, g.caller(c)); err != nil {
		g.renderError(c, err)
		return
	}

	g.invalidate(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "payouts": "flushed"})
}

func (g *Gateway) setFeeBps(c *gin.Context) {
	var req feeBpsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := g.treasury.SetFeeBps(c.Request.Context(), g.caller(c), req.Bps); err != nil {
		g.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fee_bps": req.Bps})
}

func (g *Gateway) withdrawFee(c *gin.Context) {
	amount, err := g.treasury.Withdraw(c.Request.Context(), g.caller(c))
	if err != nil {
		g.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawn": amount.String()})
}

func (g *Gateway) getRaffle(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, g.cacheKey(id)).Bytes(); err == nil {
			c.Data(http.StatusOK, "application/json", cached)
			return
		}
	}

	snap, err := g.registry.Snapshot(id)
	if err != nil {
		g.renderError(c, err)
		return
	}

	if g.cache != nil {
		if body, err := json.Marshal(snap); err == nil {
			if err := g.cache.Set(ctx, g.cacheKey(id), body, g.cacheTTL).Err(); err != nil {
				g.log.Warn("snapshot cache write failed", zap.Uint64("raffle_id", id), zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, snap)
}

func (g *Gateway) getEntrant(c *gin.Context) {
	id, ok := g.raffleID(c)
	if !ok {
		return
	}

	slot, err := strconv.ParseInt(c.Param("slot"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}

	entrant, found, err := g.registry.EntrantAt(id, slot)
	if err != nil {
		g.renderError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entry at slot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "slot": raffle.RoundDown(slot), "entrant": entrant})
}

func (g *Gateway) raffleCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": g.registry.Count()})
}

func (g *Gateway) getTreasury(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fee_bps": g.treasury.FeeBps(),
		"accrued": g.treasury.Accrued().String(),
	})
}

func (g *Gateway) raffleID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid raffle id"})
		return 0, false
	}
	return id, true
}

// renderError maps the engine's error taxonomy onto HTTP statuses.
func (g *Gateway) renderError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, raffle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidBeneficiary),
		errors.Is(err, registry.ErrEntryFeeTooLow),
		errors.Is(err, money.ErrFeeBpsRange),
		errors.Is(err, money.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, entries.ErrRaffleClosed),
		errors.Is(err, entries.ErrGuessTooEarly),
		errors.Is(err, entries.ErrGuessTaken),
		errors.Is(err, settlement.ErrAlreadyClosed),
		errors.Is(err, settlement.ErrWinningTimeTooHigh),
		errors.Is(err, settlement.ErrWinningTimeTooLow),
		errors.Is(err, settlement.ErrWinningTimeAlreadySet),
		errors.Is(err, settlement.ErrNotReady),
		errors.Is(err, settlement.ErrPoolEmpty),
		errors.Is(err, resolver.ErrNoWinner),
		errors.Is(err, resolver.ErrScanBudget):
		status = http.StatusConflict
	case errors.Is(err, custody.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, settlement.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, money.ErrPayoutOverflow):
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
