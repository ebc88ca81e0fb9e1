// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

//go:generate go run . -o ../../pkg/predicate
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/octo-sts/provenance/pkg/predicate"
)

var outputFlag = flag.String("o", "", "output directory")

// schemas maps output file names to the types they describe.
var schemas = map[string]any{
	"predicate.schema.json": predicate.Predicate{},
	"claims.schema.json":    predicate.Claims{},
}

func main() {
	flag.Parse()

	if *outputFlag == "" {
		log.Fatal("output path is required")
	}

	r := &jsonschema.Reflector{
		// Claims embeds jwt.RegisteredClaims, whose fields are flattened.
		ExpandedStruct: true,
	}
	if err := r.AddGoComments("github.com/octo-sts/provenance/pkg/predicate", "../../pkg/predicate"); err != nil {
		log.Fatal(err)
	}

	for name, t := range schemas {
		if err := write(filepath.Join(*outputFlag, name), r.Reflect(t)); err != nil {
			log.Fatalf("writing %s: %v", name, err)
		}
	}
}

func write(path string, schema *jsonschema.Schema) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return err
	}
	return out.Close()
}
