package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/feastline/feastline/client"
	"github.com/feastline/feastline/pkg/types"
)

func main() {
	endpoint := flag.String("endpoint", "ws://localhost:8080/ws", "hub WebSocket URL")
	rooms := flag.String("rooms", "", "comma-separated rooms to join, e.g. customer:42,driver:7")
	userID := flag.Int64("user", 0, "user id carried in join messages")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	keys, err := parseRooms(*rooms)
	if err != nil {
		slog.Error("invalid -rooms", "err", err)
		os.Exit(2)
	}
	if len(keys) == 0 {
		slog.Error("at least one room is required, e.g. -rooms customer:42")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(client.Options{
		Endpoint: *endpoint,
		Rooms:    keys,
		UserID:   *userID,
	})
	go c.Run(ctx)

	slog.Info("watching", "endpoint", *endpoint, "rooms", *rooms)
	for ev := range c.Events() {
		sound := ""
		if ev.PlaySound {
			sound = " ♪"
		}
		fmt.Printf("%s  %-22s order=%d %s%s\n",
			ev.Timestamp.Format("15:04:05"), ev.Type, ev.OrderID, ev.Message, sound)
	}
}

// parseRooms splits a comma-separated list of "role:id" room keys.
func parseRooms(s string) ([]types.RoomKey, error) {
	if s == "" {
		return nil, nil
	}
	var keys []types.RoomKey
	for _, part := range strings.Split(s, ",") {
		key, err := types.ParseRoomKey(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
