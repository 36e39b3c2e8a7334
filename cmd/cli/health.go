package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that both services are up",
	RunE:  runHealth,
}

type healthResult struct {
	Name string
	URL  string
	Err  error
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	results := checkHealth(cmd.Context(), newHTTPClient(), map[string]string{
		"userdb-api":   cfg.APIURL,
		"notification": cfg.NotifyURL,
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Health"))
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s %s\n", errStyle.Render("[-]"), labelStyle.Render(r.Name), dimStyle.Render(r.Err.Error()))
			continue
		}
		fmt.Fprintf(out, "  %s %s %s\n", okStyle.Render("[+]"), labelStyle.Render(r.Name), okStyle.Render("ok"))
	}
	if failed > 0 {
		return fmt.Errorf("%d service(s) unhealthy", failed)
	}
	return nil
}

// checkHealth calls GET /health on every service, ordered by name.
func checkHealth(ctx context.Context, client *http.Client, services map[string]string) []healthResult {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	slices.Sort(names)

	results := make([]healthResult, 0, len(names))
	for _, name := range names {
		url := strings.TrimRight(services[name], "/") + "/health"
		var body struct {
			Status string `json:"status"`
		}
		err := doJSON(ctx, client, http.MethodGet, url, nil, &body)
		if err == nil && body.Status != "ok" {
			err = fmt.Errorf("unexpected status %q", body.Status)
		}
		results = append(results, healthResult{Name: name, URL: url, Err: err})
	}
	return results
}
