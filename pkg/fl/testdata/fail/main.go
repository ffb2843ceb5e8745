// fail is an aggregator module that always exits with an error.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "model diverged")
	os.Exit(3)
}
