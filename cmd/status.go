package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	adpt "github.com/ivcap-works/relay-autoconfig/pkg/adapter"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the active context's stream endpoint is reachable",
	Run: func(_ *cobra.Command, _ []string) {
		ctxt := GetActiveContext()
		a := adpt.RestAdapter(adpt.WithConnContext(&adpt.ConnectionCtxt{
			URL:         ctxt.StreamURL,
			AccessToken: resolvedCredential(ctxt),
			TimeoutSec:  timeout,
		}))

		to, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
		defer cancel()

		if _, err := a.Head(to, "", nil, Logger()); err != nil {
			cobra.CheckErr(fmt.Sprintf("stream endpoint '%s' is not reachable: %v", ctxt.StreamURL, err))
		}
		fmt.Printf("Stream endpoint '%s' is reachable.\n", ctxt.StreamURL)
	},
}
