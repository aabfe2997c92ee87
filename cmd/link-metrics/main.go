// Command link-metrics is the operator CLI surface of spec section 6:
// "link-metrics set <neighbor> [--bandwidth ...] ..." and "link-metrics
// show <neighbor>", plus the supplemented "list" operation. It never talks
// to the NDN face directly; every subcommand is a thin HTTP client against
// the Metrics Control Channel's development adapter served by cmd/linkcostd
// (internal/linkcost/control.HTTPHandler), mirroring how the operator CLI
// is specified as "delegates to control channel" rather than owning logic
// of its own.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ndn-routing/linkcost/internal/support/retry"
)

// doRequestWithRetry runs newReq/client.Do under retry.Do's exponential
// backoff, retrying only the transient network-level failures
// retry.IsRetryable recognizes (connection refused, reset, timeout); a
// validation/not-found response is carried in resp, not err, so it is
// never retried. newReq is called fresh on every attempt so a request body
// (e.g. link-metrics set's JSON payload) is never replayed from an
// already-drained reader.
func doRequestWithRetry(client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(context.Background(), retry.DefaultConfig(), func() error {
		req, err := newReq()
		if err != nil {
			return err
		}
		r, err := client.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// Exit codes per spec section 6.
const (
	exitSuccess         = 0
	exitValidationError = 1
	exitUnreachable     = 2
	exitNotFound        = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: link-metrics <set|show|list> [flags]")
		return exitValidationError
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "set":
		return runSet(rest)
	case "show":
		return runShow(rest)
	case "list":
		return runList(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q (want set|show|list)\n", cmd)
		return exitValidationError
	}
}

type setMetricsRequest struct {
	BandwidthMbps *float64 `json:"BandwidthMbps,omitempty"`
	Utilization   *float64 `json:"Utilization,omitempty"`
	PacketLoss    *float64 `json:"PacketLoss,omitempty"`
	SpectrumDBM   *float64 `json:"SpectrumDBM,omitempty"`
}

type neighborSnapshotView struct {
	Neighbor     string  `json:"Neighbor"`
	Status       string  `json:"Status"`
	OriginalCost uint64  `json:"OriginalCost"`
	CurrentCost  float64 `json:"CurrentCost"`
	PreviewCost  uint64  `json:"PreviewCost"`
	SampleCount  int     `json:"SampleCount"`
	TimeoutCount uint32  `json:"TimeoutCount"`
}

func runSet(args []string) int {
	fs := flag.NewFlagSet("link-metrics set", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8089", "control channel HTTP address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	bandwidth := fs.Float64("bandwidth", 0, "bandwidth in Mbps")
	bandwidthUtil := fs.Float64("bandwidth-util", 0, "bandwidth utilization in [0,1]")
	packetLoss := fs.Float64("packet-loss", 0, "packet loss in [0,1]")
	spectrum := fs.Float64("spectrum", 0, "spectrum strength in dBm")
	if err := fs.Parse(args); err != nil {
		return exitValidationError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: link-metrics set <neighbor> [--bandwidth M] [--bandwidth-util U] [--packet-loss L] [--spectrum D]")
		return exitValidationError
	}
	neighbor := fs.Arg(0)

	req := setMetricsRequest{}
	if fs.Changed("bandwidth") {
		req.BandwidthMbps = bandwidth
	}
	if fs.Changed("bandwidth-util") {
		req.Utilization = bandwidthUtil
	}
	if fs.Changed("packet-loss") {
		req.PacketLoss = packetLoss
	}
	if fs.Changed("spectrum") {
		req.SpectrumDBM = spectrum
	}

	body, err := json.Marshal(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitValidationError
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := doRequestWithRetry(client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, *addr+"/neighbors/"+url.PathEscape(neighbor)+"/metrics", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: unreachable:", err)
		return exitUnreachable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Printf("set %s: ok\n", neighbor)
		return exitSuccess
	case http.StatusNotFound:
		fmt.Fprintf(os.Stderr, "error: neighbor %q not found\n", neighbor)
		return exitNotFound
	case http.StatusBadRequest:
		fmt.Fprintln(os.Stderr, "error: invalid argument")
		return exitValidationError
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected status %d\n", resp.StatusCode)
		return exitUnreachable
	}
}

func runShow(args []string) int {
	fs := flag.NewFlagSet("link-metrics show", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8089", "control channel HTTP address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return exitValidationError
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: link-metrics show <neighbor>")
		return exitValidationError
	}
	neighbor := fs.Arg(0)

	client := &http.Client{Timeout: *timeout}
	resp, err := doRequestWithRetry(client, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, *addr+"/neighbors/"+url.PathEscape(neighbor), nil)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: unreachable:", err)
		return exitUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		fmt.Fprintf(os.Stderr, "error: neighbor %q not found\n", neighbor)
		return exitNotFound
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "error: unexpected status %d\n", resp.StatusCode)
		return exitUnreachable
	}

	var view neighborSnapshotView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		fmt.Fprintln(os.Stderr, "error: decoding response:", err)
		return exitUnreachable
	}
	printSnapshot(view)
	return exitSuccess
}

// runList implements the supplemented "list" operation (SPEC section 11):
// enumerate every neighbor's snapshot, not just one.
func runList(args []string) int {
	fs := flag.NewFlagSet("link-metrics list", flag.ContinueOnError)
	addr := fs.String("addr", "http://127.0.0.1:8089", "control channel HTTP address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return exitValidationError
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := doRequestWithRetry(client, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, *addr+"/neighbors", nil)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: unreachable:", err)
		return exitUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "error: unexpected status %d\n", resp.StatusCode)
		return exitUnreachable
	}

	var views []neighborSnapshotView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		fmt.Fprintln(os.Stderr, "error: decoding response:", err)
		return exitUnreachable
	}
	for _, v := range views {
		printSnapshot(v)
	}
	return exitSuccess
}

func printSnapshot(v neighborSnapshotView) {
	fmt.Printf("%-20s status=%-8s original_cost=%-4d current_cost=%-8.2f preview_cost=%-4d samples=%-3d timeouts=%d\n",
		v.Neighbor, v.Status, v.OriginalCost, v.CurrentCost, v.PreviewCost, v.SampleCount, v.TimeoutCount)
}
