package main

import (
	"fmt"
	"os"

	"github.com/ayo6706/remittance-ledger/internal/app"
	"go.uber.org/zap"
)

func main() {
	if err := app.Run(); err != nil {
		// The app logger may not exist yet when config or logger setup failed.
		logger, logErr := zap.NewProduction()
		if logErr != nil {
			fmt.Fprintf(os.Stderr, "remittance ledger: %v\n", err)
			os.Exit(1)
		}
		logger.Fatal("remittance ledger stopped", zap.Error(err))
	}
}
