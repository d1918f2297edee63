// Command shipfeed runs the external shipment status collaborator: a
// standalone HTTP service the mediator queries over the ShipmentQuerier
// facade. It never imports the mediator.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/rawbytedev/trustmesh/internal/shipfeed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("shipfeed: no .env file found, continuing with process environment")
	}

	addr := os.Getenv("SHIPFEED_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	srv := shipfeed.New()
	log.Printf("shipfeed: listening on %s", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("shipfeed: server exited: %v", err)
	}
}
