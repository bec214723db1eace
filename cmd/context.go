// Copyright 2023 Commonwealth Scientific and Industrial Research Organisation (CSIRO) ABN 41 687 119 230
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"net/url"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(contextCmd)

	contextCmd.AddCommand(listContextCmd)

	contextCmd.AddCommand(createContextCmd)
	createContextCmd.Flags().StringVar(&hostName, "host-name", "", "optional host name if accessing API through SSH tunnel")
	createContextCmd.Flags().StringVar(&createCredential, "credential", "", "relay auto-config credential to store in this context")

	contextCmd.AddCommand(useContextCmd)

	contextCmd.AddCommand(getContextCmd)
}

var (
	ctxtName         string
	hostName         string
	createCredential string
)

// contextCmd represents the context command
var contextCmd = &cobra.Command{
	Use:     "context",
	Short:   "Manage and set access to various relay auto-config deployments",
	Aliases: []string{"c"},
}

var createContextCmd = &cobra.Command{
	Use:   "create ctxtName https://stream.example.com/relay_auto_config",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ctxtName = args[0]
		streamURL := args[1]
		u, err := url.ParseRequestURI(streamURL)
		if err != nil || u.Host == "" {
			cobra.CheckErr(fmt.Sprintf("url '%s' is not a valid URL", streamURL))
		}

		ctxt := &Context{
			Name:       ctxtName,
			StreamURL:  streamURL,
			Credential: createCredential,
			Host:       hostName,
		}
		SetContext(ctxt, false)
		fmt.Printf("Context '%s' created.\n", ctxtName)
	},
}

var listContextCmd = &cobra.Command{
	Use:   "list",
	Short: "List all contexts",
	Run: func(_ *cobra.Command, _ []string) {
		config, _ := ReadConfigFile(true)
		if config != nil {
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Current", "Name", "Stream URL"})
			active := config.ActiveContext
			for _, c := range config.Contexts {
				current := ""
				if active == c.Name {
					current = "*"
				}
				t.AppendRow(table.Row{current, c.Name, c.StreamURL})
			}
			t.Render()
		}
	},
}

var useContextCmd = &cobra.Command{
	Use:     "set name",
	Short:   "Set the current context in the config file",
	Aliases: []string{"use"},
	Run: func(_ *cobra.Command, args []string) {
		if len(args) < 1 {
			cobra.CheckErr("Missing 'name' arg")
		}
		ctxtName = args[0]
		config, _ := ReadConfigFile(false)
		ctxtExists := false
		for _, c := range config.Contexts {
			if c.Name == ctxtName {
				ctxtExists = true
				break
			}
		}
		if ctxtExists {
			config.ActiveContext = ctxtName
			WriteConfigFile(config)
			fmt.Printf("Switched to context '%s'.\n", ctxtName)
		} else {
			cobra.CheckErr(fmt.Sprintf("context '%s' is not defined", ctxtName))
		}
	},
}

var getContextCmd = &cobra.Command{
	Use:     "get [all|name|stream-url|credential]",
	Short:   "Display the current context",
	Aliases: []string{"current", "show"},
	Run: func(_ *cobra.Command, args []string) {
		param := "all"
		if len(args) == 1 {
			param = args[0]
		}
		context := GetActiveContext()
		switch param {
		case "name":
			fmt.Println(context.Name)
		case "stream-url":
			fmt.Println(context.StreamURL)
		case "credential":
			if c := resolvedCredential(context); c != "" {
				fmt.Println(c)
			} else if !silent {
				fmt.Println("NOT SET")
			}
		case "all":
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendRow(table.Row{"Name", context.Name})
			t.AppendRow(table.Row{"Stream URL", context.StreamURL})
			hasCred := "no"
			if resolvedCredential(context) != "" {
				hasCred = fmt.Sprintf("yes, set via '--credential' flag, '%s' env, or stored context", CREDENTIAL_ENV)
			}
			t.AppendRow(table.Row{"Credential configured", hasCred})
			if context.Host != "" {
				t.AppendRow(table.Row{"Host", context.Host})
			}
			t.Render()
		default:
			cobra.CheckErr(fmt.Sprintf("unknown context parameter '%s'", param))
		}
	},
}
