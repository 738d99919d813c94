// File: cmd/visit.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/fennelsoft/slipstream/internal/config"
	"github.com/fennelsoft/slipstream/internal/network"
	"github.com/fennelsoft/slipstream/internal/observability"
	"github.com/fennelsoft/slipstream/internal/page"
	"github.com/fennelsoft/slipstream/internal/router"
	"github.com/fennelsoft/slipstream/internal/trace"
)

var (
	visitTTL      time.Duration
	visitDebounce time.Duration
	visitTimeout  time.Duration
	visitFollow   int
	visitTrace    string
	visitInsecure bool
)

var visitCmd = &cobra.Command{
	Use:   "visit <url> [url...]",
	Short: "Navigate a headless session through one or more pages",
	Long: `Visit loads the first URL as a full document load, then drives every
further URL through the soft-navigation path: cache lookup, body swap,
script reconciliation and a history push. With --follow it additionally
walks the first N router-marked links found on the final page.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVisit,
}

func init() {
	visitCmd.Flags().DurationVar(&visitTTL, "ttl", 0, "page cache TTL (0 uses the configured default)")
	visitCmd.Flags().DurationVar(&visitDebounce, "debounce", 0, "hover-intent debounce (0 uses the configured default)")
	visitCmd.Flags().DurationVar(&visitTimeout, "timeout", 0, "per-request timeout (0 uses the configured default)")
	visitCmd.Flags().IntVar(&visitFollow, "follow", 0, "after the last URL, follow up to N marked links on the page")
	visitCmd.Flags().StringVar(&visitTrace, "trace", "", "write a JSON fetch trace to this file")
	visitCmd.Flags().BoolVar(&visitInsecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.AddCommand(visitCmd)
}

func runVisit(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	routerCfg := cfg.Router
	if visitTTL > 0 {
		routerCfg.CacheTTL = visitTTL
	}
	if visitDebounce > 0 {
		routerCfg.PrefetchDebounce = visitDebounce
	}

	client, recorder := buildClient(cfg.Network, logger)

	doc := page.New()
	r := router.New(routerCfg, client, doc, logger)
	defer r.Close()

	r.OnNavigate(func(ev router.Event) {
		fmt.Fprintf(cmd.OutOrStdout(), "-> %s  %q\n", ev.URL, ev.Title)
	})

	ctx := cmd.Context()
	for _, raw := range args {
		if err := r.Navigate(ctx, raw); err != nil {
			return fmt.Errorf("navigate %s: %w", raw, err)
		}
		printLocation(cmd, doc)
	}

	if visitFollow > 0 {
		if err := followLinks(ctx, cmd, r, doc, visitFollow); err != nil {
			return err
		}
	}

	if visitTrace != "" {
		if err := writeTrace(recorder, visitTrace); err != nil {
			return err
		}
		logger.Info("Wrote fetch trace",
			zap.String("path", visitTrace),
			zap.Int("fetches", len(recorder.Fetches())))
	}
	return nil
}

// buildClient assembles the session HTTP client and splices a trace recorder
// into its transport.
func buildClient(netCfg config.NetworkConfig, logger *zap.Logger) (*network.Client, *trace.Recorder) {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.IgnoreTLSErrors = netCfg.IgnoreTLSErrors || visitInsecure
	clientCfg.ForceHTTP2 = netCfg.ForceHTTP2
	clientCfg.UserAgent = netCfg.UserAgent
	clientCfg.Logger = logger
	if netCfg.Timeout > 0 {
		clientCfg.RequestTimeout = netCfg.Timeout
	}
	if visitTimeout > 0 {
		clientCfg.RequestTimeout = visitTimeout
	}

	client := network.NewClient(clientCfg)
	recorder := trace.NewRecorder(client.Transport)
	client.Transport = recorder
	return client, recorder
}

// followLinks walks up to limit router-marked anchors found on the current
// page, navigating to each in document order.
func followLinks(ctx context.Context, cmd *cobra.Command, r *router.Router, doc *page.Document, limit int) error {
	hrefs := markedHrefs(doc, limit)
	if len(hrefs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no marked links to follow")
		return nil
	}
	for _, href := range hrefs {
		if err := r.Navigate(ctx, href); err != nil {
			return fmt.Errorf("follow %s: %w", href, err)
		}
		printLocation(cmd, doc)
	}
	return nil
}

// markedHrefs collects hrefs of marked anchors from the current document, up
// to limit. The snapshot is taken once; navigating replaces the body, so the
// list must not be re-walked mid-loop.
func markedHrefs(doc *page.Document, limit int) []string {
	var hrefs []string
	seen := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(hrefs) >= limit {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && page.HasAttr(n, router.MarkerAttr) {
			if href := page.Attr(n, "href"); href != "" {
				if _, dup := seen[href]; !dup {
					seen[href] = struct{}{}
					hrefs = append(hrefs, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return hrefs
}

func printLocation(cmd *cobra.Command, doc *page.Document) {
	u := doc.URL()
	loc := ""
	if u != nil {
		loc = u.String()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %q\n", loc, doc.Title())
}

func writeTrace(rec *trace.Recorder, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	defer f.Close()
	if err := rec.WriteJSON(f); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}
