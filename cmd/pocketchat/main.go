package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"

	"pocketchat/internal/chat"
	"pocketchat/internal/session"
	"pocketchat/internal/storage"
)

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Latency    time.Duration `env:"POCKETCHAT_LATENCY" envDefault:"300ms"`
	TypingIdle time.Duration `env:"POCKETCHAT_TYPING_IDLE" envDefault:"2s"`
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	cfg := EnvConfig{}
	if err := env.Parse(&cfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	storeCfg := storage.Config{}
	if err := env.Parse(&storeCfg); err != nil {
		sugar.Fatalf("Cannot parse storage config: %v", err)
	}

	repo, err := storage.New(sugar, storeCfg)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}
	defer repo.Close()

	sessions := session.New(sugar, repo, session.WithLatency(cfg.Latency))
	chats := chat.New(sugar, repo, chat.WithIdleWindow(cfg.TypingIdle))

	c := client{
		sessions: sessions,
		chats:    chats,
		out:      os.Stdout,
	}

	if account, ok := sessions.Current(); ok {
		chats.LoadChats(account.ID)
		fmt.Printf("welcome back, %s\n", account.Username)
	}

	c.run(bufio.NewScanner(os.Stdin))
}

type client struct {
	sessions *session.Store
	chats    *chat.Store
	out      *os.File
}

func (c *client) run(in *bufio.Scanner) {
	fmt.Fprintln(c.out, `type "help" for commands`)

	for {
		fmt.Fprint(c.out, "> ")
		if !in.Scan() {
			return
		}

		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}

		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		c.dispatch(cmd, args)
	}
}

func (c *client) dispatch(cmd string, args []string) {
	ctx := context.Background()

	switch cmd {
	case "help":
		fmt.Fprintln(c.out, `commands:
  signup <username> <email> <password>
  login <email> <password>
  logout | whoami | premium
  passwd <current> <new> <confirm>
  chats | create <name> | open <chat-id> | close
  send <text...> | typing | delete <chat-id>`)

	case "signup":
		if len(args) != 3 {
			fmt.Fprintln(c.out, "usage: signup <username> <email> <password>")
			return
		}
		if err := c.sessions.Signup(ctx, args[0], args[1], args[2]); err != nil {
			fmt.Fprintf(c.out, "signup failed: %v\n", err)
			return
		}
		account, _ := c.sessions.Current()
		c.chats.LoadChats(account.ID)
		fmt.Fprintf(c.out, "welcome, %s\n", account.Username)

	case "login":
		if len(args) != 2 {
			fmt.Fprintln(c.out, "usage: login <email> <password>")
			return
		}
		if err := c.sessions.Login(ctx, args[0], args[1]); err != nil {
			fmt.Fprintf(c.out, "login failed: %v\n", err)
			return
		}
		account, _ := c.sessions.Current()
		c.chats.LoadChats(account.ID)
		fmt.Fprintf(c.out, "welcome back, %s\n", account.Username)

	case "logout":
		c.sessions.Logout()
		c.chats.SetActiveChat("")
		fmt.Fprintln(c.out, "logged out")

	case "whoami":
		account, ok := c.sessions.Current()
		if !ok {
			fmt.Fprintln(c.out, "not logged in")
			return
		}
		tier := "free"
		if account.IsPremium {
			tier = "premium"
		}
		fmt.Fprintf(c.out, "%s <%s> (%s), joined %s\n", account.Username, account.Email, tier, account.JoinedAt.Format("2006-01-02"))

	case "premium":
		c.sessions.UpgradeToPremium()
		if c.sessions.Authenticated() {
			fmt.Fprintln(c.out, "upgraded to premium")
		}

	case "passwd":
		if len(args) != 3 {
			fmt.Fprintln(c.out, "usage: passwd <current> <new> <confirm>")
			return
		}
		if err := c.sessions.ChangePassword(args[0], args[1], args[2]); err != nil {
			fmt.Fprintf(c.out, "password change failed: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "password changed")

	case "chats":
		for _, ch := range c.chats.Chats() {
			last := "(no messages)"
			if ch.LastMessage != nil {
				last = ch.LastMessage.Content
			}
			fmt.Fprintf(c.out, "%s  %-20s %s\n", ch.ID, ch.Name, last)
		}

	case "create":
		account, ok := c.sessions.Current()
		if !ok {
			fmt.Fprintln(c.out, "login first")
			return
		}
		if len(args) == 0 {
			fmt.Fprintln(c.out, "usage: create <name>")
			return
		}
		id, err := c.chats.CreateChat(strings.Join(args, " "), account.ID)
		if err != nil {
			if errors.Is(err, chat.ErrChatLimit) {
				fmt.Fprintln(c.out, "free accounts are limited to 2 chats, try \"premium\"")
				return
			}
			fmt.Fprintf(c.out, "create failed: %v\n", err)
			return
		}
		c.chats.SetActiveChat(id)
		fmt.Fprintf(c.out, "created chat %s\n", id)

	case "open":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: open <chat-id>")
			return
		}
		c.chats.SetActiveChat(args[0])
		for _, m := range c.chats.Messages(args[0]) {
			fmt.Fprintf(c.out, "[%s] %s: %s\n", m.Timestamp.Format("15:04"), m.SenderID, m.Content)
		}

	case "close":
		c.chats.SetActiveChat("")

	case "send":
		account, ok := c.sessions.Current()
		if !ok {
			fmt.Fprintln(c.out, "login first")
			return
		}
		active := c.chats.ActiveChat()
		if active == "" {
			fmt.Fprintln(c.out, "no chat open")
			return
		}
		if _, err := c.chats.SendMessage(active, strings.Join(args, " "), account.ID); err != nil {
			fmt.Fprintf(c.out, "send failed: %v\n", err)
		}

	case "typing":
		active := c.chats.ActiveChat()
		if active == "" {
			fmt.Fprintln(c.out, "no chat open")
			return
		}
		for _, p := range c.chats.TypingIn(active) {
			fmt.Fprintf(c.out, "%s is typing...\n", p.Username)
		}

	case "delete":
		if len(args) != 1 {
			fmt.Fprintln(c.out, "usage: delete <chat-id>")
			return
		}
		if err := c.chats.DeleteChat(args[0]); err != nil {
			fmt.Fprintf(c.out, "delete failed: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "chat deleted")

	default:
		fmt.Fprintf(c.out, "unknown command %q\n", cmd)
	}
}
