// Command token issues a bearer token for a participant, signed with the
// server's JWT_SECRET. With no -participant flag a new participant id is
// generated.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/auth"
	"github.com/mmynk/syndicate/internal/config"
	"github.com/mmynk/syndicate/pkg/logging"
)

func main() {
	participantFlag := flag.String("participant", "", "participant id (uuid); empty generates one")
	flag.Parse()

	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	participant := uuid.New()
	if *participantFlag != "" {
		participant, err = uuid.Parse(*participantFlag)
		if err != nil || participant == uuid.Nil {
			slog.Error("Invalid participant", "participant", *participantFlag, "error", err)
			os.Exit(1)
		}
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(participant)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "participant: %s\n", participant)
	fmt.Println(token)
}
