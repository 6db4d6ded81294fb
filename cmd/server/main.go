package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/folio/internal/flagx"
	"github.com/dmitrijs2005/folio/internal/server"
	"github.com/dmitrijs2005/folio/internal/server/config"
)

// grantAdminEmail reads -grant-admin from the process arguments, leaving
// the rest for the config flag set.
func grantAdminEmail(args []string) string {
	var email string

	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&email, "grant-admin", "", "promote the identity with this email to admin and exit")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-grant-admin", "--grant-admin"}))

	return email
}

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer app.Close()

	if email := grantAdminEmail(os.Args[1:]); email != "" {
		if err := app.GrantAdmin(ctx, email); err != nil {
			log.Printf("grant admin: %v", err)
			return
		}
		log.Printf("%s is now an admin", email)
		return
	}

	app.Run(ctx)

}
