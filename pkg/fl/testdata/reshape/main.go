// reshape is an aggregator module that answers with a single scalar tensor
// whatever the request.
package main

import (
	"io"
	"os"
)

func main() {
	_, _ = io.Copy(io.Discard, os.Stdin)
	_, _ = os.Stdout.WriteString(`{"vars":[{"values":[0],"shape":[1],"dtype":"float32"}]}`)
}
