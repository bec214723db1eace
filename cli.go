package main

import (
	"fmt"

	"github.com/ivcap-works/relay-autoconfig/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	sha := commit
	if len(sha) > 7 {
		sha = sha[:7]
	}
	cmd.Execute(fmt.Sprintf("%s|%s|%s", version, sha, date))
}
