package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Pinger is anything that can report reachability, such as an export sink.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerState reports whether the history ledger lost its backend.
type LedgerState interface {
	Degraded() bool
}

// Checker aggregates readiness checks for the collaborators a session uses.
type Checker struct {
	ledger    LedgerState
	sink      Pinger
	engine    string
	oracleKey string
	timeout   time.Duration
}

// Options configures the Checker. Sink may be nil when artifacts are only
// returned to the caller.
type Options struct {
	Ledger    LedgerState
	Sink      Pinger
	Engine    string
	OracleKey string
	Timeout   time.Duration
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	History  Status `json:"history"`
	Export   Status `json:"export"`
	Oracle   Status `json:"oracle"`
	Renderer Status `json:"renderer"`
}

// Ready reports whether sessions can run end to end. A degraded ledger does
// not block processing.
func (s Summary) Ready() bool { return s.Export.OK && s.Oracle.OK && s.Renderer.OK }

func New(opts Options) *Checker {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Checker{
		ledger:    opts.Ledger,
		sink:      opts.Sink,
		engine:    opts.Engine,
		oracleKey: strings.TrimSpace(opts.OracleKey),
		timeout:   opts.Timeout,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		History:  c.checkHistory(),
		Export:   c.checkExport(ctx),
		Oracle:   c.checkOracle(),
		Renderer: Status{OK: true, Message: "MuPDF linked"},
	}
}

func (c *Checker) checkHistory() Status {
	if c.ledger == nil || c.ledger.Degraded() {
		return Status{OK: false, Message: "Degraded, history is not recorded"}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkExport(ctx context.Context) Status {
	if c.sink == nil {
		return Status{OK: true, Message: "Download only"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.sink.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkOracle() Status {
	if c.oracleKey == "" {
		return Status{OK: false, Message: fmt.Sprintf("%s API key missing", c.engine)}
	}
	return Status{OK: true, Message: c.engine + " configured"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
