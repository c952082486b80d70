package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threadview/internal/viewer"
)

func main() {
	addrFlag := flag.String("addr", ":8082", "listen address, e.g. :80 or 0.0.0.0:8082")
	urlFlag := flag.String("url", "", "thread page to view")
	configFlag := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stdout)

	cfg := viewer.DefaultConfig()
	if *configFlag != "" {
		loaded, err := viewer.LoadFile(*configFlag, cfg)
		if err != nil {
			log.Fatalf("Config error: %v", err)
		}
		cfg = loaded
	}
	if *urlFlag != "" {
		cfg.URL = *urlFlag
	}
	cfg.Logger = log.Default()

	addr := *addrFlag
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, loop, cleanup, err := viewer.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("Load error for %s: %v", cfg.URL, err)
	}
	defer cleanup()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("LOOP stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           viewer.New(page, loop, cfg.Logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          log.New(os.Stdout, "HTTPERR ", log.LstdFlags|log.Lmicroseconds),
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("Listen error on %s: %v", addr, err)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Println("Listening on", addr, "for", cfg.URL)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	<-loopDone
	page.Close()
}
