package main

import (
	"os"

	"github.com/fatflowers/tollgate/internal/app"
)

// The sweeper expires lapsed subscriptions on sweeper.spec. Several replicas may run;
// the Redis lock lets only one of them sweep at a time.
func main() {
	os.Exit(app.Run("sweeper", app.SweeperModule))
}
