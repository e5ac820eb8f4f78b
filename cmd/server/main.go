package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/xhad/promptlab/pkg/app"
	cfgPkg "github.com/xhad/promptlab/pkg/config"
	"github.com/xhad/promptlab/server"
	"k8s.io/klog/v2"
)

func main() {
	var configPath, port string
	var verbose bool

	klog.InitFlags(nil)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&port, "port", os.Getenv("PORT"), "Port to listen on")
	flag.BoolVar(&verbose, "verbose", false, "Include every menu chat stage in responses")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if port == "" {
		port = cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	var suggester server.Suggester
	if s, err := a.Suggester(ctx); err != nil {
		klog.ErrorS(err, "Title suggestions disabled")
	} else {
		suggester = s
	}

	var chatbot server.Chatbot
	if c, err := a.Chain(); err != nil {
		klog.ErrorS(err, "Menu chat disabled")
	} else {
		chatbot = c
	}

	if suggester == nil && chatbot == nil {
		log.Fatal("nothing to serve")
	}

	ws := server.NewWSServer(suggester, chatbot)
	ws.Verbose = verbose

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: ws.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting WebSocket server on port %s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
