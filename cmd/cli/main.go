package main

import (
	"context"
	"log"
	"os"

	"github.com/JustWint3r/SecureShare/internal/client/cli"
	"github.com/JustWint3r/SecureShare/internal/client/config"
	"github.com/JustWint3r/SecureShare/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	_, args := flagx.SplitArgs(os.Args[1:], config.Flags)

	app := cli.NewApp(cfg, os.Stdout)
	closeConn, err := app.Dial()
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer closeConn()

	if err := app.Run(ctx, args); err != nil {
		log.Printf("%v", err)
		closeConn()
		os.Exit(1)
	}

}
