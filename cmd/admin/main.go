// Command admin provides counter maintenance and event inspection tools.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"postbook/internal/bootstrap"
	"postbook/internal/config"
	"postbook/internal/notifications"
	"postbook/internal/repository"
	"postbook/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin reconcile              - Repair every drifted post_count")
	fmt.Println("  go run ./cmd/admin recount <account_id>   - Recount one account's posts")
	fmt.Println("  go run ./cmd/admin watch [account_id]     - Print published events")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	opts := bootstrap.Options{SkipSchema: true}
	if command != "watch" {
		opts.SkipRedis = true
	}
	db, rdb, err := bootstrap.InitRuntime(ctx, cfg, opts)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer bootstrap.Close(db, rdb)

	coordinator := service.NewCoordinator(repository.NewStore(db))

	switch command {
	case "reconcile":
		repaired, err := coordinator.ReconcileCounters(ctx)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		fmt.Printf("Repaired %d account(s)\n", repaired)

	case "recount":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		id, err := parseAccountID(os.Args[2])
		if err != nil {
			log.Fatal(err)
		}
		account, err := coordinator.RecountAccount(ctx, id)
		if err != nil {
			log.Fatalf("Recount failed: %v", err)
		}
		fmt.Printf("Account %d (%s) post_count=%d\n", account.ID, account.Name, account.PostCount)

	case "watch":
		if rdb == nil {
			log.Fatal("Redis is not reachable; no events to watch")
		}
		channels := []string{notifications.BroadcastChannel()}
		if len(os.Args) >= 3 {
			id, err := parseAccountID(os.Args[2])
			if err != nil {
				log.Fatal(err)
			}
			channels = []string{notifications.AccountChannel(id)}
		}
		watch(ctx, notifications.NewNotifier(rdb), channels)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func parseAccountID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return uint(id), nil
}

func watch(ctx context.Context, n *notifications.Notifier, channels []string) {
	enc := json.NewEncoder(os.Stdout)
	err := n.StartEventSubscriber(ctx, func(channel string, ev notifications.Event) {
		_ = enc.Encode(map[string]any{"channel": channel, "event": ev})
	}, channels...)
	if err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}
	log.Printf("Watching %v (Ctrl+C to stop)", channels)
	<-ctx.Done()
}
