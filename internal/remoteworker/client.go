package remoteworker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/bench"
	"github.com/TheEntropyCollective/storagebench/internal/config"
)

// ProtocolVersion is the version this client and internal/httpservice's
// server agree on; a mismatch is a RemoteProtocolError, not a silent
// downgrade (spec.md §4.5).
const ProtocolVersion = 1

// Client drives one remote service through the benchmark protocol. One
// Client exists per configured host.
type Client struct {
	Host       string
	httpClient *http.Client
}

// NewClient builds a Client for host ("host:port").
func NewClient(host string) *Client {
	return &Client{Host: host, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s%s", c.Host, path)
}

func (c *Client) fail(detail string, cause error) error {
	return &bench.RemoteProtocolError{Host: c.Host, Detail: detail, Cause: cause}
}

// CheckProtocolVersion fetches GET /protocolversion and fails if it differs
// from ProtocolVersion.
func (c *Client) CheckProtocolVersion() error {
	resp, err := c.httpClient.Get(c.url("/protocolversion"))
	if err != nil {
		return c.fail("protocolversion request failed", err)
	}
	defer resp.Body.Close()
	var v ProtocolVersionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return c.fail("protocolversion decode failed", err)
	}
	if v.ProtocolVersion != ProtocolVersion {
		return c.fail(fmt.Sprintf("protocol version mismatch: master=%d service=%d", ProtocolVersion, v.ProtocolVersion), nil)
	}
	return nil
}

// PreparePhase POSTs the benchmark configuration to /preparephase, the
// step that causes the service to build its worker manager.
func (c *Client) PreparePhase(cfg *config.Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return c.fail("config marshal failed", err)
	}
	resp, err := c.httpClient.Post(c.url("/preparephase"), "application/json", bytes.NewReader(body))
	if err != nil {
		return c.fail("preparephase request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.fail(fmt.Sprintf("preparephase returned %s", resp.Status), readBodySnippet(resp.Body))
	}
	return nil
}

// StartPhase GETs /startphase?phase=...&benchid=..., instructing the
// service to publish (phase, id) to its workers. The master passes the
// same id to every service so they advance in lockstep.
func (c *Client) StartPhase(p bench.Phase, id bench.BenchID) error {
	q := url.Values{"phase": {p.String()}, "benchid": {id.String()}}
	resp, err := c.httpClient.Get(c.url("/startphase?") + q.Encode())
	if err != nil {
		return c.fail("startphase request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.fail(fmt.Sprintf("startphase returned %s", resp.Status), readBodySnippet(resp.Body))
	}
	return nil
}

// Status GETs /status, the live-progress poll the master issues every
// ~500ms while a phase is in flight (spec.md §4.5).
func (c *Client) Status() (StatusResponse, error) {
	var s StatusResponse
	resp, err := c.httpClient.Get(c.url("/status"))
	if err != nil {
		return s, c.fail("status request failed", err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return s, c.fail("status decode failed", err)
	}
	return s, nil
}

// BenchResult GETs /benchresult, the final per-phase report.
func (c *Client) BenchResult() (ResultResponse, error) {
	var r ResultResponse
	resp, err := c.httpClient.Get(c.url("/benchresult"))
	if err != nil {
		return r, c.fail("benchresult request failed", err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return r, c.fail("benchresult decode failed", err)
	}
	if r.ErrorHistory != "" {
		return r, (&bench.RemoteProtocolError{Host: c.Host, Detail: r.ErrorHistory}).AsWorkerFailed(-1)
	}
	return r, nil
}

// InterruptPhase GETs /interruptphase, optionally with quit=true to also
// terminate the service process. When quit is true, a connection-refused
// error (the service exiting mid-response) is expected and suppressed
// rather than surfaced as a RemoteProtocolError, per spec.md §4.5's Design
// Notes.
func (c *Client) InterruptPhase(quit bool) error {
	q := ""
	if quit {
		q = "?quit=true"
	}
	resp, err := c.httpClient.Get(c.url("/interruptphase") + q)
	if err != nil {
		if quit {
			return nil
		}
		return c.fail("interruptphase request failed", err)
	}
	defer resp.Body.Close()
	return nil
}

func readBodySnippet(r io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	if len(b) == 0 {
		return nil
	}
	return fmt.Errorf("%s", string(b))
}
