package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/talkincode/botfleet/config"
	"github.com/talkincode/botfleet/internal/adminapi"
	"github.com/talkincode/botfleet/internal/app"
	"github.com/talkincode/botfleet/internal/webserver"
)

var (
	h        = flag.Bool("h", false, "help usage")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and rebuild the database schema")
)

func printHelp() {
	if *h {
		ustr := fmt.Sprintf("botfleet usage:\n\nUsage: %s -h\n\nOptions:", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s\n", ustr)
		flag.PrintDefaults()
		os.Exit(0)
	}
}

func main() {
	flag.Parse()
	printHelp()

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		fmt.Fprintln(os.Stderr, "database initialized")
		return
	}

	server := webserver.Init(cfg)
	adminapi.Init(&adminapi.Deps{
		DB:        application.DB(),
		Manager:   application.Manager(),
		Sessions:  application.Sessions(),
		Reminders: application.Reminders(),
		OptOuts:   application.OptOuts(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Listen)
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "botfleet exited: %v\n", err)
		os.Exit(1)
	}
}
