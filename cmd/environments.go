package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ivcap-works/relay-autoconfig/pkg/autoconfig"
	"github.com/ivcap-works/relay-autoconfig/pkg/eventsource"
)

func init() {
	rootCmd.AddCommand(environmentsCmd)
}

var environmentsCmd = &cobra.Command{
	Use:     "environments",
	Short:   "Connect, wait for the initial snapshot, and print the cached environments as a table",
	Aliases: []string{"envs"},
	Run: func(_ *cobra.Command, _ []string) {
		ctxt := GetActiveContext()
		cred := resolvedCredential(ctxt)
		if cred == "" {
			cobra.CheckErr(fmt.Sprintf("no credential configured. Set with '--credential' or env '%s'", CREDENTIAL_ENV))
		}

		headers := http.Header{"Authorization": []string{cred}}
		if ctxt.Host != "" {
			headers.Set("Host", ctxt.Host)
		}

		source := eventsource.New(eventsource.Config{
			URL:              ctxt.StreamURL,
			Headers:          headers,
			MaxDecoderBuffer: MaxDecoderBufferBytes(),
			Logger:           Logger(),
		})
		defer source.Close()

		client := autoconfig.NewClient()
		driver := autoconfig.NewDriver(source, client, Logger())

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
		defer cancel()

		for {
			events, ok, err := driver.Next(ctx)
			if err != nil {
				cobra.CheckErr(fmt.Sprintf("stream failed while waiting for initial snapshot: %v", err))
			}
			if !ok {
				cobra.CheckErr("stream closed before an initial snapshot arrived")
			}
			initialized := false
			for _, ev := range events {
				if _, isInit := ev.(autoconfig.InitializedEvent); isInit {
					initialized = true
				}
			}
			if initialized {
				break
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Env ID", "Project", "Environment", "Secure Mode", "Version"})
		for _, e := range client.AllEnvironments() {
			t.AppendRow(table.Row{e.EnvID, e.ProjName, e.EnvName, e.SecureMode, e.Version})
		}
		t.Render()
	},
}
