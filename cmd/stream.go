package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	log "go.uber.org/zap"

	"github.com/ivcap-works/relay-autoconfig/pkg/autoconfig"
	"github.com/ivcap-works/relay-autoconfig/pkg/eventsource"
)

func init() {
	rootCmd.AddCommand(streamCmd)
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Connect to the relay auto-config feed and report environment changes as they arrive",
	Run: func(_ *cobra.Command, _ []string) {
		ctxt := GetActiveContext()
		cred := resolvedCredential(ctxt)
		if cred == "" {
			cobra.CheckErr(fmt.Sprintf("no credential configured. Set with '--credential' or env '%s'", CREDENTIAL_ENV))
		}

		logger := Logger()
		headers := http.Header{"Authorization": []string{cred}}
		if ctxt.Host != "" {
			headers.Set("Host", ctxt.Host)
		}

		source := eventsource.New(eventsource.Config{
			URL:              ctxt.StreamURL,
			Headers:          headers,
			MaxDecoderBuffer: MaxDecoderBufferBytes(),
			Logger:           logger,
		})
		defer source.Close()

		driver := autoconfig.NewDriver(source, autoconfig.NewClient(), logger)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		start := time.Now()
		for {
			events, ok, err := driver.Next(ctx)
			if err != nil {
				cobra.CheckErr(fmt.Sprintf("stream failed: %v", err))
			}
			if !ok {
				if !silent {
					fmt.Printf("stream closed (was open since %s)\n", humanize.Time(start))
				}
				return
			}
			for _, ev := range events {
				printChangeEvent(ev, logger)
			}
		}
	},
}

func printChangeEvent(ev autoconfig.ChangeEvent, logger *log.Logger) {
	var out interface{}
	switch e := ev.(type) {
	case autoconfig.InitializedEvent:
		out = map[string]string{"type": "initialized"}
	case autoconfig.InsertEvent:
		out = map[string]interface{}{"type": "insert", "environment": e.Environment}
	case autoconfig.UpdateEvent:
		out = map[string]interface{}{"type": "update", "previous": e.Previous, "current": e.Current}
	case autoconfig.DeleteEvent:
		out = map[string]interface{}{"type": "delete", "envId": e.EnvID}
	default:
		out = map[string]string{"type": fmt.Sprintf("%T", ev)}
	}

	var b []byte
	var err error
	if outputFormat == "yaml" {
		b, err = yaml.Marshal(out)
	} else {
		b, err = json.Marshal(out)
	}
	if err != nil {
		logger.Warn("cannot render change event", log.Error(err))
		return
	}
	fmt.Println(string(b))
}
