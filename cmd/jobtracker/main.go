// Command jobtracker は求人応募トラッカーのAPIサーバーとワーカーを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/jobtracker/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
