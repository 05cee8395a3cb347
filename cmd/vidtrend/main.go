package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dwsmith1983/vidtrend/internal/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
