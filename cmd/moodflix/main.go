package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/user/moodflix/internal/watchlist"
)

const usage = `moodflix - manage your MoodFlix watchlist from the terminal

Usage:
  moodflix [flags] <command> [args]

Commands:
  login <email>            sign in (password is read from stdin) and migrate the local watchlist
  logout                   forget the saved token
  status                   show whether the local or account watchlist is in use
  list                     list watchlist items
  add <tmdbId> [title]     add a movie
  remove <tmdbId>          remove a movie
  toggle <tmdbId>          toggle watched state
  contains <tmdbId>        check whether a movie is in the watchlist
  stats                    show watchlist statistics
  export                   print the watchlist as JSON
  clear                    remove every item
  migrate                  copy the local watchlist to the signed-in account

Flags:
`

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("moodflix", flag.ExitOnError)
	server := fs.String("server", envOr("MOODFLIX_URL", "http://localhost:8080"), "MoodFlix server URL")
	storagePath := fs.String("storage", "", "path of the local storage file")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[1:])

	if !*verbose {
		log.SetOutput(io.Discard)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *server, *storagePath, fs.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, server, storagePath string, args []string, stdin io.Reader, out io.Writer) error {
	if storagePath == "" {
		p, err := watchlist.DefaultStoragePath()
		if err != nil {
			return err
		}
		storagePath = p
	}
	storage, err := watchlist.NewFileStorage(storagePath)
	if err != nil {
		return err
	}
	client := watchlist.NewClient(server)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return login(ctx, storage, client, rest, stdin, out)
	case "logout":
		if err := watchlist.ClearToken(storage); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out.")
		return nil
	}

	sess, err := watchlist.Open(ctx, storage, client)
	if err != nil {
		return err
	}
	if cmd != "migrate" {
		if res, err := sess.MigrateIfNeeded(ctx); err != nil {
			return err
		} else if res != nil {
			printMigration(out, *res)
		}
	}

	store := sess.Store
	switch cmd {
	case "status":
		if sess.Remote {
			fmt.Fprintf(out, "Signed in, using the account watchlist on %s\n", server)
		} else {
			fmt.Fprintln(out, "Not signed in, using the local watchlist")
		}
		n, err := sess.Local.Len()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Local items: %d (%s)\n", n, storagePath)
		return nil

	case "list":
		items, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "Your watchlist is empty.")
			return nil
		}
		for _, it := range items {
			mark := " "
			if it.Watched {
				mark = "x"
			}
			fmt.Fprintf(out, "[%s] %-8d %s%s\n", mark, it.TMDBID, it.Title, yearSuffix(it.ReleaseDate))
		}
		return nil

	case "add":
		id, err := tmdbArg(rest)
		if err != nil {
			return err
		}
		item := watchlist.Item{TMDBID: id, Title: strings.Join(rest[1:], " ")}
		added, err := store.Add(ctx, item)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Added %d %s\n", added.TMDBID, added.Title)
		return nil

	case "remove":
		id, err := tmdbArg(rest)
		if err != nil {
			return err
		}
		if err := store.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d\n", id)
		return nil

	case "toggle":
		id, err := tmdbArg(rest)
		if err != nil {
			return err
		}
		it, err := store.ToggleWatched(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d is now %s\n", it.TMDBID, it.Status)
		return nil

	case "contains":
		id, err := tmdbArg(rest)
		if err != nil {
			return err
		}
		ok, err := store.Contains(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ok)
		return nil

	case "stats":
		st, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Total: %d\nPending: %d\nWatching: %d\nCompleted: %d (%d%%)\nAbandoned: %d\n",
			st.Total, st.Pending, st.Watching, st.Completed, st.CompletedPercentage, st.Abandoned)
		return nil

	case "export":
		exp, err := store.Export(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)

	case "clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Watchlist cleared.")
		return nil

	case "migrate":
		if !sess.Remote {
			return errors.New("sign in first: moodflix login <email>")
		}
		printMigration(out, watchlist.NewMigrator(sess.Local, sess.Client).Migrate(ctx))
		return nil
	}

	return fmt.Errorf("unknown command %q", cmd)
}

func login(ctx context.Context, storage watchlist.Storage, client *watchlist.Client, args []string, stdin io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: moodflix login <email>")
	}

	fmt.Fprint(out, "Password: ")
	password, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	fmt.Fprintln(out)

	lctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	token, user, err := client.Login(lctx, args[0], strings.TrimRight(password, "\r\n"))
	if err != nil {
		return err
	}
	if err := watchlist.SaveToken(storage, token); err != nil {
		return err
	}
	if user != nil {
		fmt.Fprintf(out, "Signed in as %s\n", user.Email)
	}

	sess, err := watchlist.Open(ctx, storage, client)
	if err != nil {
		return err
	}
	res, err := sess.MigrateIfNeeded(ctx)
	if err != nil {
		return err
	}
	if res != nil {
		printMigration(out, *res)
	}
	return nil
}

func printMigration(out io.Writer, res watchlist.MigrationResult) {
	fmt.Fprintln(out, res.Message)
	if res.Errors > 0 {
		fmt.Fprintf(out, "%d of %d items could not be migrated\n", res.Errors, res.Total)
	}
}

func tmdbArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("missing TMDb ID")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid TMDb ID %q", args[0])
	}
	return id, nil
}

func yearSuffix(date string) string {
	if len(date) >= 4 {
		return " (" + date[:4] + ")"
	}
	return ""
}
