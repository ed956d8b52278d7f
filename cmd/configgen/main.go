package main

import (
	"flag"
	"log"

	"github.com/CactiLab/FIDO2Verif/internal/config"
)

func main() {
	output := flag.String("output", "config.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "config.toml", "config path for validation")
	root := flag.String("root", ".", "root directory relative paths resolve against")
	checkInputs := flag.Bool("check-inputs", false, "with -validate, also require templates and library to exist")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.Load(*input, *root)
		if err != nil {
			log.Fatal(err)
		}
		if *checkInputs {
			if err := cfg.CheckInputs(); err != nil {
				log.Fatal(err)
			}
		}
		log.Printf("Validated config at %s (runner=%s analyze=%s)", *input, cfg.Runner, cfg.Analyze)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote config template to %s", *output)
}
