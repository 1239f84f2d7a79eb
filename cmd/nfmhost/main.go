package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	nfmbind "github.com/wippyai/nfm-bind"
	"github.com/wippyai/nfm-bind/binding"
	"github.com/wippyai/nfm-bind/config"
	"github.com/wippyai/nfm-bind/engine"
	"github.com/wippyai/nfm-bind/native"
	"github.com/wippyai/nfm-bind/watch"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML config file")
		pluginFile  = flag.String("plugin", "", "Path to plugin image (.so, .dylib, .dll or .wasm)")
		menu        = flag.String("menu", "", "Menu to show: "+menuNames())
		items       = flag.String("items", "", "Items for the items menu (comma-separated)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat   = flag.String("log-format", "", "Log format (console, json)")
		watchFile   = flag.Bool("watch", false, "Rebind when the plugin file changes and keep showing the menu")
		list        = flag.Bool("list", false, "List entry points and exit")
		last        = flag.Bool("last", false, "Run the plugin's last definition and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv(os.LookupEnv)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "plugin":
			cfg.Plugin = *pluginFile
		case "menu":
			cfg.Menu = config.Menu(*menu)
		case "items":
			cfg.Items = splitList(*items)
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "watch":
			cfg.Watch = *watchFile
		}
	})

	if cfg.Plugin == "" {
		fmt.Fprintln(os.Stderr, "Usage: nfmhost -plugin <image> [-menu name] [-items a,b,c] [-watch]")
		fmt.Fprintln(os.Stderr, "       nfmhost -plugin <image> -list")
		fmt.Fprintln(os.Stderr, "       nfmhost -plugin <image> -last")
		fmt.Fprintln(os.Stderr, "       nfmhost -plugin <image> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       nfmhost -config nfm.yaml")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var mode func(context.Context, *host) error
	switch {
	case *list:
		mode = runList
	case *last:
		mode = runLast
	case *interactive:
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		mode = runInteractive
	default:
		mode = run
	}

	if err := withHost(ctx, cfg, mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// host is the bound plugin and everything needed to drive it.
type host struct {
	cfg     *config.Config
	logger  *zap.Logger
	mgr     *binding.Manager
	rebinds chan error
}

func withHost(ctx context.Context, cfg *config.Config, fn func(context.Context, *host) error) (err error) {
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	engCfg := cfg.EngineConfig()
	engCfg.Logger = logger.Named("engine")
	eng, err := engine.New(ctx, engCfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer func() { err = multierr.Append(err, eng.Close(context.Background())) }()

	loader := nfmbind.NewMux(native.New(native.Options{Logger: logger.Named("native")}))
	loader.Handle(".wasm", eng)

	h := &host{
		cfg:     cfg,
		logger:  logger,
		mgr:     binding.NewManager(loader, binding.WithLogger(logger.Named("binding"))),
		rebinds: make(chan error, 1),
	}
	if _, err := h.mgr.Bind(ctx, cfg.Plugin); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, h.mgr.Unbind(context.Background())) }()

	if cfg.Watch {
		rb, err := watch.New(h.mgr, cfg.Plugin,
			watch.WithLogger(logger.Named("watch")),
			watch.OnRebind(func(_ *binding.Binding, err error) {
				select {
				case h.rebinds <- err:
				default:
				}
			}),
		)
		if err != nil {
			return err
		}
		defer rb.Close()
		go rb.Run(ctx)
	}

	return fn(ctx, h)
}

func run(ctx context.Context, h *host) error {
	for {
		b := h.mgr.Current()
		if b == nil {
			// A failed rebind leaves the slot empty until the file changes again.
			select {
			case <-ctx.Done():
				return nil
			case err := <-h.rebinds:
				if err != nil {
					fmt.Fprintf(os.Stderr, "Rebind failed: %v\n", err)
				}
				continue
			}
		}

		res, err := show(ctx, b, h.cfg.Menu, h.cfg.Items)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("show %s: %w", h.cfg.Menu, err)
		}
		if res.selected {
			fmt.Println(res.value)
		} else {
			fmt.Fprintln(os.Stderr, "Dismissed")
		}

		if !h.cfg.Watch {
			return nil
		}
	}
}

func runList(_ context.Context, h *host) error {
	b := h.mgr.Current()
	fmt.Printf("Plugin: %s\n\nEntry points:\n", b.Path())
	for _, ep := range binding.Table() {
		status := "bound"
		if !ep.Mandatory {
			status = "optional, missing"
			if b.CanRunLastDefinition() {
				status = "optional, bound"
			}
		}
		fmt.Printf("  %-18s %-22s %s\n", ep.Symbol, ep.Signature, status)
	}
	return nil
}

func runLast(ctx context.Context, h *host) error {
	return h.mgr.Current().RunLastDefinition(ctx)
}

type result struct {
	value    string
	selected bool
}

// show presents menu on b and blocks until the request settles. Cancelling
// ctx asks the plugin to hide the menu.
func show(ctx context.Context, b *binding.Binding, menu config.Menu, items []string) (result, error) {
	picked := make(chan string, 1)
	onString := binding.Callbacks[string]{
		OnSelect: func(v string, _ any) { picked <- v },
	}

	var (
		r   *binding.Request
		err error
	)
	switch menu {
	case config.MenuFileSystem:
		r, err = b.ShowFileSystem(ctx, onString)
	case config.MenuPrograms:
		r, err = b.ShowProgramsList(ctx, onString)
	case config.MenuProcesses:
		r, err = b.ShowProcessesList(ctx, onString)
	case config.MenuWindows:
		r, err = b.ShowWindowsList(ctx, binding.Callbacks[nfmbind.WindowHandle]{
			OnSelect: func(w nfmbind.WindowHandle, _ any) { picked <- fmt.Sprintf("window %#x", uint64(w)) },
		})
	case config.MenuItems:
		r, err = b.ShowItemsList(ctx, func(any) []string { return items }, onString)
	default:
		return result{}, fmt.Errorf("unknown menu %q", menu)
	}
	if err != nil {
		return result{}, err
	}

	state, err := r.Wait(ctx)
	if err != nil {
		_ = b.Hide(context.Background())
		return result{}, err
	}
	if state != binding.StateSelected {
		return result{}, nil
	}
	return result{value: <-picked, selected: true}, nil
}

func menuNames() string {
	names := make([]string, len(config.Menus))
	for i, m := range config.Menus {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
