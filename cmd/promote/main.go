// Command promote grants or revokes admin on a user account directly in
// the database. There is deliberately no HTTP endpoint for minting the
// first admin.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

var (
	dsn     = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	userID  = flag.String("user", "", "User UUID to modify (required)")
	demote  = flag.Bool("demote", false, "Revoke admin instead of granting it")
	confirm = flag.Bool("confirm", false, "Required to write; otherwise prints the plan")
)

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *userID == "" {
		fatalf("--user is required")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	var username string
	var admin bool
	err = db.QueryRowContext(ctx,
		`SELECT username, admin FROM app_auth.users WHERE uuid = $1`, *userID).
		Scan(&username, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		fatalf("no user with uuid %s", *userID)
	}
	if err != nil {
		fatalf("lookup: %v", err)
	}

	want := !*demote
	if admin == want {
		fmt.Printf("%s (%s) already has admin=%v; nothing to do\n", username, *userID, admin)
		return
	}

	if !*confirm {
		fmt.Printf("would set admin=%v on %s (%s); re-run with --confirm\n", want, username, *userID)
		return
	}

	res, err := db.ExecContext(ctx,
		`UPDATE app_auth.users SET admin = $1, updated_at = now() WHERE uuid = $2`,
		want, *userID)
	if err != nil {
		fatalf("update: %v", err)
	}
	n, _ := res.RowsAffected()
	fmt.Printf("updated %d row(s): %s (%s) admin=%v\n", n, username, *userID, want)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
