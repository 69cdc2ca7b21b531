package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nickyhof/SliceDB"
	"github.com/nickyhof/SliceDB/core"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	port := flag.Int("port", 3306, "TCP port to listen on")
	dbPath := flag.String("db", "slicedb.duckdb", "Path to the DuckDB database file")
	certFile := flag.String("tlsCert", "", "TLS certificate file (TLS disabled if empty)")
	keyFile := flag.String("tlsKey", "", "TLS private key file")
	jwtSecret := flag.String("jwtSecret", "", "Require JWT auth with this HS256 secret")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SliceDB Server v%s\n", Version)
		return
	}

	log.Printf("Using database: %s", *dbPath)
	instance := SliceDB.Open(*dbPath)

	// Create and start server
	var server *Server
	if *jwtSecret != "" {
		server = NewServerWithAuth(instance, &AuthConfig{
			Enabled:   true,
			JWTSecret: *jwtSecret,
		})
	} else {
		server = NewServer(instance, core.Identity{
			Name:  "SliceDB Server",
			Email: "server@slicedb.local",
		})
	}

	addr := fmt.Sprintf(":%d", *port)

	var err error
	if *certFile != "" {
		err = server.StartTLS(addr, *certFile, *keyFile)
	} else {
		err = server.Start(addr)
	}
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Print banner
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   SliceDB Server v%-18s  ║\n", Version)
	fmt.Println("║  Out-of-core DuckDB Table Processing  ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d\n", *port)
	fmt.Println("Send SQL queries (one per line), 'quit' to disconnect")
	fmt.Println()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	server.Stop()
	log.Println("Server stopped")
}
