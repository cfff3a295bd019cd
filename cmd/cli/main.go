package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	root := NewRootCmd()

	if err := root.ExecuteContext(context.Background()); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
