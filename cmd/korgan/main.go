package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mastertenor/korgan/internal/app"
	"github.com/mastertenor/korgan/internal/credential"
	"github.com/mastertenor/korgan/internal/model"
	"github.com/mastertenor/korgan/internal/prefs"
	"github.com/mastertenor/korgan/internal/source"
	"github.com/mastertenor/korgan/internal/source/api"
	"github.com/mastertenor/korgan/internal/source/gmail"
	"github.com/mastertenor/korgan/internal/source/imap"
	"github.com/mastertenor/korgan/internal/store"
	appsync "github.com/mastertenor/korgan/internal/sync"
	"github.com/mastertenor/korgan/internal/tree"
)

type runConfig struct {
	configPath string
	folder     string
	login      bool
	setSecret  bool
	check      bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "korgan: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() runConfig {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the config file")
	folder := flag.String("folder", "", "folder to open on start (overrides the remembered one)")
	login := flag.Bool("login", false, "run the Gmail OAuth flow and exit")
	setSecret := flag.Bool("set-secret", false, "read a backend secret from stdin, store it in the keyring, and exit")
	check := flag.Bool("check", false, "validate the backend connection and exit")
	flag.Parse()

	return runConfig{
		configPath: *configPath,
		folder:     *folder,
		login:      *login,
		setSecret:  *setSecret,
		check:      *check,
	}
}

func run(cfg runConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appCfg, err := model.LoadConfig(cfg.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// First run: write the defaults out so there is a file to edit.
	if _, statErr := os.Stat(cfg.configPath); errors.Is(statErr, os.ErrNotExist) {
		if err := model.SaveConfig(cfg.configPath, appCfg); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}

	if cfg.login {
		return login(ctx, appCfg, cfg.configPath)
	}
	if cfg.setSecret {
		return storeSecret(appCfg)
	}

	stateDir := filepath.Dir(cfg.configPath)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", stateDir, err)
	}

	// Logs go to a file: writing to stderr would tear the alternate
	// screen while the UI runs.
	logger, closeLog, err := openLogger(stateDir)
	if err != nil {
		return err
	}
	defer closeLog()

	src, err := buildMailSource(ctx, appCfg, cfg.configPath)
	if err != nil {
		return err
	}

	if cfg.check {
		name, err := src.ValidateConnection(ctx)
		if err != nil {
			return fmt.Errorf("validate connection: %w", err)
		}
		fmt.Printf("connected to %s as %s\n", appCfg.Account.Backend, name)
		return nil
	}

	mailStore := store.New(src, store.Config{
		Logger:        logger,
		PageSize:      appCfg.Mail.PageSize,
		StaleAfter:    time.Duration(appCfg.Mail.StalenessSec) * time.Second,
		MaxResident:   appCfg.Mail.MaxContexts,
		BulkBatchSize: appCfg.Mail.BulkBatchSize,
	})

	treeStore := tree.New(buildTreeSource(logger, appCfg, src), tree.Config{
		OrgID:       appCfg.API.OrgID,
		ContextID:   appCfg.API.ContextID,
		RootSlug:    appCfg.API.RootSlug,
		ExpandDepth: appCfg.Display.TreeExpandDepth,
		Logger:      logger,
	})

	prefStore, err := prefs.Open(filepath.Join(stateDir, "prefs.db"))
	if err != nil {
		return fmt.Errorf("open preferences: %w", err)
	}
	defer prefStore.Close()

	initial := model.Folder(cfg.folder)
	if initial == "" {
		last, err := prefStore.Get(ctx, prefs.KeyLastFolder)
		if err != nil {
			logger.Warn("reading last folder", "error", err)
		}
		initial = model.Folder(last)
	}

	refresher := appsync.New(mailStore, time.Duration(appCfg.Display.RefreshSec)*time.Second)

	program := tea.NewProgram(
		app.New(mailStore, treeStore, prefStore, refresher, initial),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func login(ctx context.Context, cfg *model.AppConfig, configPath string) error {
	if cfg.Account.Backend != model.BackendGmail {
		return fmt.Errorf("-login only applies to the gmail backend, account.backend is %q", cfg.Account.Backend)
	}
	credFile, tokenFile := gmailFiles(cfg, configPath)
	if err := gmail.Authorize(ctx, credFile, tokenFile); err != nil {
		return fmt.Errorf("authorize gmail: %w", err)
	}
	fmt.Println("authorized; token saved to", tokenFile)
	return nil
}

// storeSecret reads one secret from stdin and stores it under the keyring
// key the configured backend reads at startup.
func storeSecret(cfg *model.AppConfig) error {
	email := cfg.Account.Email
	if email == "" {
		return fmt.Errorf("account.email is not set in the config")
	}

	var key string
	switch cfg.Account.Backend {
	case model.BackendAPI:
		key = credential.APITokenKey(email)
	case model.BackendIMAP:
		key = credential.IMAPPasswordKey(email)
	case model.BackendGmail:
		return fmt.Errorf("the gmail backend authenticates with -login, not a stored secret")
	default:
		return fmt.Errorf("unknown backend %q in account.backend", cfg.Account.Backend)
	}

	fmt.Fprintf(os.Stderr, "secret for %s: ", email)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return fmt.Errorf("empty secret")
	}

	if err := credential.Set(key, secret); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	fmt.Fprintln(os.Stderr, "stored")
	return nil
}

func buildMailSource(ctx context.Context, cfg *model.AppConfig, configPath string) (source.MailSource, error) {
	email := cfg.Account.Email

	switch cfg.Account.Backend {
	case model.BackendAPI:
		if cfg.API.BaseURL == "" {
			return nil, fmt.Errorf("api.base_url is not set in the config")
		}
		token, err := credential.Get(credential.APITokenKey(email))
		if err != nil {
			return nil, fmt.Errorf("read API token (store one with -set-secret): %w", err)
		}
		return api.NewAdapter(cfg.API.BaseURL, token), nil

	case model.BackendGmail:
		credFile, tokenFile := gmailFiles(cfg, configPath)
		svc, err := gmail.NewService(ctx, credFile, tokenFile)
		if err != nil {
			return nil, fmt.Errorf("create gmail service (run -login first): %w", err)
		}
		return gmail.NewAdapter(svc), nil

	case model.BackendIMAP:
		if cfg.IMAP.Host == "" {
			return nil, fmt.Errorf("imap.host is not set in the config")
		}
		username := cfg.IMAP.Username
		if username == "" {
			username = email
		}
		password, err := credential.Get(credential.IMAPPasswordKey(email))
		if err != nil {
			return nil, fmt.Errorf("read IMAP password (store one with -set-secret): %w", err)
		}
		return imap.NewAdapter(
			cfg.IMAP.Host,
			strconv.Itoa(cfg.IMAP.Port),
			username,
			password,
			cfg.IMAP.UseTLS,
		), nil

	default:
		return nil, fmt.Errorf("unknown backend %q in account.backend", cfg.Account.Backend)
	}
}

// buildTreeSource picks the folder tree backend. The REST API is the only
// tree service; a gmail or imap account can still point api.base_url at
// one, and without it the sidebar shows just the system folders.
func buildTreeSource(logger *slog.Logger, cfg *model.AppConfig, mail source.MailSource) source.TreeSource {
	if ts, ok := mail.(source.TreeSource); ok {
		return ts
	}
	if cfg.API.BaseURL == "" {
		return noTreeService{}
	}
	token, err := credential.Get(credential.APITokenKey(cfg.Account.Email))
	if err != nil {
		logger.Warn("folder tree disabled, API token unavailable", "error", err)
		return noTreeService{}
	}
	return api.NewAdapter(cfg.API.BaseURL, token)
}

// gmailFiles returns the OAuth file locations, defaulting to files next
// to the config.
func gmailFiles(cfg *model.AppConfig, configPath string) (credFile, tokenFile string) {
	dir := filepath.Dir(configPath)
	credFile = cfg.Gmail.CredentialsFile
	if credFile == "" {
		credFile = filepath.Join(dir, "credentials.json")
	}
	tokenFile = cfg.Gmail.TokenFile
	if tokenFile == "" {
		tokenFile = filepath.Join(dir, "token.json")
	}
	return credFile, tokenFile
}

func openLogger(stateDir string) (*slog.Logger, func(), error) {
	logPath := filepath.Join(stateDir, "korgan.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}
	logger := slog.New(slog.NewTextHandler(f, nil))
	return logger, func() { f.Close() }, nil
}

// noTreeService serves accounts with no folder tree backend: loads return
// an empty forest and edits are rejected.
type noTreeService struct{}

func (noTreeService) FetchTree(context.Context, string, string, string) ([]model.TreeNode, error) {
	return nil, nil
}

func (noTreeService) CreateNode(context.Context, string, string, source.CreateNodeRequest) (*model.TreeNode, error) {
	return nil, errNoTreeService()
}

func (noTreeService) UpdateNode(context.Context, string, source.UpdateNodeRequest) (*model.TreeNode, error) {
	return nil, errNoTreeService()
}

func (noTreeService) DeleteNode(context.Context, string) error {
	return errNoTreeService()
}

func (noTreeService) MoveNode(context.Context, string, source.MoveNodeRequest) error {
	return errNoTreeService()
}

func errNoTreeService() error {
	return &source.ValidationError{Message: "no folder tree service configured; set api.base_url"}
}
