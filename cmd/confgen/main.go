package main

import (
	"flag"
	"log"

	"github.com/kkirby/rax25kb/internal/config"
)

func main() {
	output := flag.String("output", "config.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "config.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.LoadBridgeConfig(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated bridge config at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote bridge config template to %s", *output)
}
