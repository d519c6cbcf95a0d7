package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/AlexxIT/go2hap/internal/app"
	"github.com/AlexxIT/go2hap/internal/homekit"
	"github.com/AlexxIT/go2hap/pkg/shell"
)

func main() {
	// controller tools, run instead of the accessory
	pair := flag.String("pair", "", "Pair with accessory: homekit://host:port or homekit://?device_id=...")
	pin := flag.String("pin", "", "Setup code for -pair")
	unpair := flag.String("unpair", "", "Remove own pairing from accessory by URL from -pair")
	pairings := flag.String("pairings", "", "Print controllers of accessory by admin URL from -pair")
	discover := flag.Bool("discover", false, "Print HomeKit accessories from the local network")

	app.Init() // init config and logs

	switch {
	case *pair != "":
		rawURL, err := homekit.Pair(*pair, *pin)
		exit(rawURL, err)
	case *unpair != "":
		exit("", homekit.Unpair(*unpair))
	case *pairings != "":
		items, err := homekit.Pairings(*pairings)
		if err != nil {
			exit("", err)
		}
		b, err := json.MarshalIndent(items, "", "  ")
		exit(string(b), err)
	case *discover:
		b, err := json.MarshalIndent(homekit.Discover(), "", "  ")
		exit(string(b), err)
	}

	homekit.Init()

	ctx, cancel := shell.SignalContext()
	defer cancel()

	if err := homekit.Run(ctx); err != nil {
		app.Logger.Fatal().Err(err).Send()
	}
}

func exit(s string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if s != "" {
		fmt.Println(s)
	}
	os.Exit(0)
}
