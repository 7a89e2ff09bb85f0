// Command migrate applies the settlement ledger's schema migrations. It is
// the same shape as the teacher's migrate_apply command: a -apply flag
// gates execution, listing files is the default.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	apply := flag.Bool("apply", false, "apply migrations instead of listing them")
	flag.Parse()

	migDir := filepath.Join("internal", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		log.Fatalf("read migrations dir: %v", err)
	}

	if !*apply {
		for _, f := range files {
			fmt.Println(f.Name())
		}
		return
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			log.Fatalf("read file %s: %v", f.Name(), err)
		}
		if _, err := pool.Exec(context.Background(), string(b)); err != nil {
			log.Fatalf("apply %s: %v", f.Name(), err)
		}
		fmt.Printf("applied %s\n", f.Name())
	}
}
