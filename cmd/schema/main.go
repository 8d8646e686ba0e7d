// Command schema writes the JSON schema describing the sitescope config
// file, for editor completion and config linting. The output path defaults
// to config-schema.json and can be overridden as the first argument.
package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/stb-erben/sitescope/pkg/config"
)

func main() {
	out := "config-schema.json"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	data, err := json.MarshalIndent(jsonschema.Reflect(&config.Config{}), "", "  ")
	if err != nil {
		log.Fatalf("[ERROR] marshal config schema: %v", err)
	}

	if err := os.WriteFile(out, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		log.Fatalf("[ERROR] write %s: %v", out, err)
	}

	log.Printf("[INFO] config schema written to %s", out)
}
