package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"niftybt/backtest"
	"niftybt/options"
	"niftybt/strategy"
)

// Handler holds the API request handlers.
type Handler struct {
	runs     *RunManager
	premiums *options.Source
	started  time.Time
}

func NewHandler(runs *RunManager, premiums *options.Source) *Handler {
	return &Handler{runs: runs, premiums: premiums, started: time.Now()}
}

// BacktestRequest is the POST /api/backtests payload. Dates are
// YYYY-MM-DD; params are passed through to the strategy factory.
type BacktestRequest struct {
	Symbol        string         `json:"symbol" binding:"required"`
	Strategy      string         `json:"strategy" binding:"required"`
	Start         string         `json:"start"`
	End           string         `json:"end"`
	InitialCash   float64        `json:"initial_cash"`
	BrokerageRate float64        `json:"brokerage_rate"`
	FixedQty      float64        `json:"fixed_qty"`
	PositionPct   float64        `json:"position_pct"`
	LotSize       int            `json:"lot_size"`
	CloseOnEnd    bool           `json:"close_on_end"`
	Params        map[string]any `json:"params"`
}

// CreateBacktest validates the request, resolves the strategy, and
// submits a background run. Responds 202 with the run id to poll.
func (h *Handler) CreateBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, end, err := parseDateRange(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	strat, err := strategy.New(req.Strategy, req.Params, strategy.Deps{Premiums: h.premiums})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := backtest.RunConfig{
		Symbol:        req.Symbol,
		Start:         start,
		End:           end,
		InitialCash:   req.InitialCash,
		BrokerageRate: req.BrokerageRate,
		FixedQty:      req.FixedQty,
		PositionPct:   req.PositionPct,
		LotSize:       req.LotSize,
		CloseOnEnd:    req.CloseOnEnd,
		Strategy:      strat,
	}
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = 1_000_000
	}

	run := h.runs.Submit(cfg)
	c.JSON(http.StatusAccepted, gin.H{"code": 0, "data": run})
}

// ListBacktests returns all runs, newest first.
func (h *Handler) ListBacktests(c *gin.Context) {
	runs := h.runs.List()
	c.JSON(http.StatusOK, gin.H{"code": 0, "count": len(runs), "data": runs})
}

// GetBacktest returns one run's status and, once done, its result.
func (h *Handler) GetBacktest(c *gin.Context) {
	run := h.runs.Get(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "id": c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": run})
}

// GetBacktestChart renders the finished run's equity curve as SVG.
func (h *Handler) GetBacktestChart(c *gin.Context) {
	run := h.runs.Get(c.Param("id"))
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "id": c.Param("id")})
		return
	}
	if run.Status != StatusDone || run.Result == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "run not finished", "status": run.Status})
		return
	}

	initial := run.Result.Metrics.FinalEquity - run.Result.Metrics.TotalPnL - run.Result.Metrics.UnrealizedPnL
	svg, err := backtest.RenderEquitySVG(run.Result, initial, backtest.SVGChartOptions{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

// GetStrategies lists the registered strategy names.
func (h *Handler) GetStrategies(c *gin.Context) {
	names := strategy.Names()
	c.JSON(http.StatusOK, gin.H{"code": 0, "count": len(names), "data": names})
}

// GetStatus reports service health and run counts.
func (h *Handler) GetStatus(c *gin.Context) {
	runs := h.runs.List()
	var running int
	for _, r := range runs {
		if r.Status == StatusRunning || r.Status == StatusQueued {
			running++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{
			"uptime_seconds": int(time.Since(h.started).Seconds()),
			"total_runs":     len(runs),
			"active_runs":    running,
			"strategies":     len(strategy.Names()),
		},
	})
}

func parseDateRange(start, end string) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	var s, e time.Time
	var err error
	if start != "" {
		if s, err = time.Parse(layout, start); err != nil {
			return s, e, err
		}
	}
	if end != "" {
		if e, err = time.Parse(layout, end); err != nil {
			return s, e, err
		}
	}
	return s, e, nil
}
