package main

import (
	"log"

	"github.com/shaharia-lab/cloudcli-push/cmd"
)

func main() {
	assets, err := getWebAssets()
	if err != nil {
		log.Fatalf("failed to load web assets: %v", err)
	}
	cmd.WebFS = assets
	cmd.Execute()
}
