// Command seed fills the database with fake accounts and posts.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"postbook/internal/bootstrap"
	"postbook/internal/config"
	"postbook/internal/repository"
	"postbook/internal/seed"
	"postbook/internal/service"
)

func main() {
	accounts := flag.Int("accounts", 20, "Number of accounts to create")
	postsPerAccount := flag.Int("posts", 5, "Posts to create per account")
	maxImages := flag.Int("images", 3, "Maximum image references per post")
	concurrency := flag.Int("concurrency", 8, "Concurrent post writers")
	seedValue := flag.Int64("seed", 0, "Random seed (0 for a random run)")
	clean := flag.Bool("clean", false, "Delete all accounts and posts before seeding")
	preset := flag.String("preset", "", "Apply a bundled preset ("+strings.Join(seed.PresetNames(), ", ")+"); other flags are ignored")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	ctx := context.Background()
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer bootstrap.Close(db, rdb)

	s := seed.NewSeeder(db, service.NewCoordinator(repository.NewStore(db)))

	var res *seed.Result
	if *preset != "" {
		log.Printf("Applying preset: %s", *preset)
		res, err = s.ApplyPreset(ctx, *preset)
	} else {
		res, err = s.Run(ctx, seed.Options{
			Accounts:        *accounts,
			PostsPerAccount: *postsPerAccount,
			MaxImages:       *maxImages,
			Concurrency:     *concurrency,
			Seed:            *seedValue,
			Clean:           *clean,
		})
	}
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d accounts and %d posts", len(res.Accounts), res.Posts)
}

