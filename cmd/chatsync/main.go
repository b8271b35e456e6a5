package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/client"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/config"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/identity"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/session"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/timeline"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/transport"
	"github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/log"
)

func main() {
	partner := flag.String("partner", "", "identity of the conversation partner")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	log.Init(cfg.Log)
	l := log.L()

	if *partner == "" {
		fmt.Fprintln(os.Stderr, "usage: chatsync -partner <user-id>")
		os.Exit(2)
	}

	id, err := identity.Load(cfg.Identity.Path)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to load local identity")
	}

	api := client.New(cfg.API.BaseURL, cfg.API.Timeout)
	wsCfg := transport.Config{
		URL:              cfg.WebSocket.URL,
		PingInterval:     cfg.WebSocket.PingInterval,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		WriteWait:        cfg.WebSocket.WriteWait,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
	}

	var ctrl *session.Controller
	ctrl = session.NewController(api, wsCfg, id, func() {
		render(ctrl, id.ID)
	})

	ctrl.SetPartner(*partner)
	ctrl.Focus()

	// Back navigation and process exit both close the session first so
	// the connection never outlives the view.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			// Input is already cleared by the time the send resolves;
			// a failure does not restore it.
			if err := ctrl.Send(context.Background(), text); err != nil {
				if errors.Is(err, client.ErrConversationClosed) {
					fmt.Println("** this conversation is completed; messages can no longer be sent **")
					continue
				}
				l.Warn().Err(err).Msg("message not sent")
			}
		}
		quit <- syscall.SIGTERM
	}()

	<-quit
	ctrl.Close()
}

func render(ctrl *session.Controller, localID string) {
	items := ctrl.Timeline()

	fmt.Print("\033[2J\033[H")
	for _, item := range items {
		switch item.Kind {
		case timeline.KindDateSeparator:
			fmt.Printf("--- %s ---\n", item.Label)
		case timeline.KindMessage:
			who := item.Message.SenderID
			if who == localID {
				who = "you"
			}
			fmt.Printf("[%s] %s: %s\n", item.Message.CreatedAt.Local().Format("15:04"), who, item.Message.Text)
		}
	}
}
