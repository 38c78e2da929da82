package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/zlnvch/flashlist/client"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/outline"
)

var (
	errNotLoggedIn = errors.New("not logged in, run `flashlist login`")
	errExpired     = errors.New("session expired, run `flashlist login`")
)

// app is what every command works with: the saved session and the
// service client.
type app struct {
	home    string
	session *client.Session
	remote  *client.Remote
}

func newApp() (*app, error) {
	home := homeDir
	if home == "" {
		var err error
		if home, err = client.DefaultHome(); err != nil {
			return nil, err
		}
	}

	session := client.NewSession(client.NewCredentialFile(home))
	remote, err := client.NewRemote(serverURL, session)
	if err != nil {
		return nil, err
	}
	return &app{
		home:    home,
		session: session,
		remote:  remote,
	}, nil
}

// snapshot is the signed-in account's local copy of the outline, or nil
// when nobody is signed in.
func (a *app) snapshot() *client.SnapshotFile {
	user, ok := a.session.User()
	if !ok || user.Id == "" {
		return nil
	}
	return client.NewSnapshotFile(a.home, user.Id)
}

func (a *app) requireLogin() error {
	switch a.session.State() {
	case client.Authenticated:
		return nil
	case client.Expired:
		return errExpired
	default:
		return errNotLoggedIn
	}
}

func (a *app) newStore(onLoad func([]models.Item)) *outline.Store {
	opts := outline.Options{
		OnUnauthorized: a.session.Expire,
		OnLoad:         onLoad,
	}
	if snapshot := a.snapshot(); snapshot != nil {
		opts.Legacy = snapshot
	}
	return outline.New(a.remote, opts)
}

// openOutline loads the outline from the service. With allowOffline the
// local copy is returned when the service cannot be reached, along with
// a warning.
func (a *app) openOutline(ctx context.Context, allowOffline bool) (*outline.Store, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}

	store := a.newStore(nil)
	if err := store.Load(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			store.Close()
			return nil, errExpired
		}
		if !allowOffline {
			store.Close()
			return nil, err
		}
		printWarning(fmt.Sprintf("showing local copy: %v", err))
	}
	return store, nil
}

// finish sends pending writes, waits for every request and keeps the
// result as the local copy.
func (a *app) finish(ctx context.Context, store *outline.Store) error {
	defer store.Close()

	err := store.Flush(ctx)
	store.Wait()
	if a.session.State() != client.Authenticated {
		return errExpired
	}
	if snapshot := a.snapshot(); snapshot != nil {
		if saveErr := snapshot.Save(store.Items()); saveErr != nil {
			log.Printf("Failed to save local copy: %v", saveErr)
		}
	}
	return err
}

func waitPending(ctx context.Context, p *outline.Pending) error {
	if p == nil {
		return nil
	}
	return p.Wait(ctx)
}

// parsePosition turns a 1-based listing position into an index.
func parsePosition(arg string, count int) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", arg)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("position %d is out of range (1-%d)", n, count)
	}
	return n - 1, nil
}

func itemAt(store *outline.Store, arg string) (models.Item, error) {
	items := store.Items()
	i, err := parsePosition(arg, len(items))
	if err != nil {
		return models.Item{}, err
	}
	return items[i], nil
}

// readPassword takes the password from the flag, FLASHLIST_PASSWORD or
// the first line of in.
func readPassword(flagValue string, in io.Reader) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("FLASHLIST_PASSWORD"); v != "" {
		return v, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}
