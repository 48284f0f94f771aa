// Command cqs is a local code-search engine: it indexes a source
// repository into a persistent semantic+lexical index and answers
// natural-language and structural queries over it.
package main

import (
	"os"

	"github.com/jamie8johnson/cqs-sub000/cmd/cqs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
