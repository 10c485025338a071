package cmd

import (
	"context"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
)

func newMetricsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Work with the metrics a running server exports",
	}

	scrape := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape a Prometheus endpoint and print the families as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
			defer cancel()

			families, err := scrapeFamilies(ctx, v.GetString("url"))
			if err != nil {
				return err
			}
			families = selectFamilies(families, v.GetStringSlice("name"))
			return writeJSON(cmd.OutOrStdout(), exporters.FamiliesToJSON(families))
		},
	}
	scrape.Flags().String("url", "http://localhost:8080/metrics", "Metrics endpoint to scrape")
	scrape.Flags().StringSlice("name", nil, "Only print these metric families (repeatable)")
	scrape.Flags().Duration("timeout", 10*time.Second, "Scrape timeout")

	cmd.AddCommand(scrape)
	return cmd
}

func scrapeFamilies(ctx context.Context, url string) ([]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.InvalidParameterError("url", err.Error(), url)
	}
	// Only the text format is parsed
	req.Header.Set("Accept", "text/plain;version=0.0.4")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.NewError().
			Code(errors.CodeNetworkError).
			Type(errors.ErrTypeNetwork).
			Messagef("failed to scrape %s", url).
			Cause(err).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewError().
			Code(errors.CodeNetworkError).
			Type(errors.ErrTypeNetwork).
			Messagef("scrape of %s returned %s", url, resp.Status).
			Context("status", resp.StatusCode).
			Build()
	}
	return exporters.ParseText(resp.Body)
}

func selectFamilies(families []*dto.MetricFamily, names []string) []*dto.MetricFamily {
	if len(names) == 0 {
		return families
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	kept := families[:0]
	for _, mf := range families {
		if want[mf.GetName()] {
			kept = append(kept, mf)
		}
	}
	return kept
}
