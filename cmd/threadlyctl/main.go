// threadlyctl is a CLI for exercising the Threadly client stack.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	threadlyctl resolve
//	threadlyctl cart list|add|qty|remove|clear [options]
//	threadlyctl login -phone NUMBER
//	threadlyctl verify -phone NUMBER -otp CODE
//	threadlyctl whoami
//	threadlyctl logout
//	threadlyctl agent
//
// Examples:
//
//	THREADLY_API_BASE=http://localhost:5000 PORTAL=customer threadlyctl resolve
//	threadlyctl cart add -id p1 -name "Linen Kurta" -price 1499.00 -size M
//	threadlyctl cart qty -id p1 -delta 2
//	threadlyctl login -phone 9876543210
//	threadlyctl verify -phone 9876543210 -otp 123456
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"threadly/internal/agent"
	"threadly/internal/api"
	"threadly/internal/auth"
	"threadly/internal/cart"
	"threadly/internal/config"
	"threadly/internal/endpoint"
	"threadly/internal/model"
	"threadly/internal/session"
	"threadly/internal/storage"
)

// Global flags (apply to all commands)
var (
	quiet   bool
	noColor bool
	yes     bool // skip confirmation prompts
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen = "", "", ""
	colorYellow, colorCyan, colorGray = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "resolve":
		runResolve(args)
	case "cart":
		runCart(args)
	case "login":
		runLogin(args)
	case "verify":
		runVerify(args)
	case "whoami":
		runWhoami(args)
	case "logout":
		runLogout(args)
	case "agent":
		runAgent(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `threadlyctl - Threadly portal client tool

Usage:
  threadlyctl <command> [options]

Commands:
  resolve   Print the resolved API base URL
  cart      Manage the local cart (list, add, qty, remove, clear)
  login     Request a login OTP for a phone number
  verify    Verify an OTP and store the session
  whoami    Show the stored session identity
  logout    Notify the server and clear the session
  agent     Serve cart/session tools over MCP stdio

Configuration comes from CONFIG_FILE or environment variables
(PORTAL, THREADLY_API_BASE, STORAGE_BACKEND, ...).

Examples:
  # Resolve the base URL the client would use
  PORTAL=customer THREADLY_API_BASE=http://localhost:5000 threadlyctl resolve

  # Add an item, then bump its quantity
  threadlyctl cart add -id p1 -name "Linen Kurta" -price 1499.00 -size M
  threadlyctl cart qty -id p1 -delta 2

  # OTP login flow
  threadlyctl login -phone 9876543210
  threadlyctl verify -phone 9876543210 -otp 123456

Run 'threadlyctl <command> -h' for command-specific options.
`)
}

// =============================================================================
// WIRING
// =============================================================================

// app bundles the stores a command operates on.
type app struct {
	cfg      *config.Config
	store    storage.Store
	resolver *endpoint.Resolver
	client   *api.Client
	cart     *cart.Store
	sessions *session.Store
	auth     *auth.Flow
	log      *slog.Logger
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	store, err := cfg.NewStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	resolver := endpoint.New(ctx, cfg.EndpointConfig(), store)
	client, err := api.New(api.Config{
		Resolver:           resolver,
		Mode:               api.CredentialMode(cfg.Settings.CredentialMode),
		Portal:             cfg.Portal,
		BrowserFingerprint: cfg.Settings.BrowserFingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("building API client: %w", err)
	}

	cartOpts := []cart.Option{cart.WithBadge(printBadge)}
	if !yes {
		cartOpts = append(cartOpts, cart.WithConfirmer(cart.ConfirmerFunc(terminalConfirm)))
	}
	cartStore := cart.New(store, logger, cartOpts...)

	sessionOpts := []session.Option{session.WithRedirect(printRedirect)}
	if cfg.Settings.EntryURL != "" {
		sessionOpts = append(sessionOpts, session.WithEntryURL(cfg.Settings.EntryURL))
	}
	sessions := session.New(store, client, logger, sessionOpts...)

	return &app{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		client:   client,
		cart:     cartStore,
		sessions: sessions,
		auth:     auth.New(client, sessions),
		log:      logger,
	}, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// terminalConfirm asks on stderr and reads a y/n answer from stdin.
func terminalConfirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printBadge(count int, visible bool) {
	if quiet || !visible {
		return
	}
	fmt.Fprintf(os.Stderr, "%s→ cart badge: %d%s\n", colorGray, count, colorReset)
}

func printRedirect(target string) {
	if !quiet {
		printInfo("Redirect to %s", target)
	}
}

// =============================================================================
// RESOLVE COMMAND
// =============================================================================

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: threadlyctl resolve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	applyGlobalFlags()

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	base := a.resolver.Base()
	if quiet {
		fmt.Println(base)
		return
	}
	printSuccess("Base URL resolved")
	fmt.Printf("  Base: %s%s%s\n", colorCyan, base, colorReset)
	fmt.Printf("  Example: %s\n", a.resolver.BuildURL("/api/products"))
}

// =============================================================================
// CART COMMAND
// =============================================================================

func runCart(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: threadlyctl cart <list|add|qty|remove|clear> [options]\n")
		os.Exit(1)
	}
	sub := args[0]
	args = args[1:]

	fs := flag.NewFlagSet("cart "+sub, flag.ExitOnError)
	addGlobalFlags(fs)

	var id, name, price, color, size string
	var delta int
	switch sub {
	case "add":
		fs.StringVar(&id, "id", "", "Product ID (required)")
		fs.StringVar(&name, "name", "", "Product name")
		fs.StringVar(&price, "price", "0", "Unit price in rupees, e.g. 1499.00")
		fs.StringVar(&color, "color", "", "Selected color")
		fs.StringVar(&size, "size", "", "Selected size")
	case "qty":
		fs.StringVar(&id, "id", "", "Product ID (required)")
		fs.IntVar(&delta, "delta", 0, "Quantity change, negative to decrease (required)")
	case "remove":
		fs.StringVar(&id, "id", "", "Product ID (required)")
	case "list", "clear":
	default:
		fmt.Fprintf(os.Stderr, "Unknown cart subcommand: %s\n", sub)
		os.Exit(1)
	}
	fs.Parse(args)
	applyGlobalFlags()

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	switch sub {
	case "list":
		printCart(ctx, a.cart)

	case "add":
		if id == "" {
			fs.Usage()
			os.Exit(1)
		}
		item := model.CartItem{
			ID:    id,
			Name:  name,
			Price: model.ParsePaise(price),
			Color: color,
			Size:  size,
		}
		if err := a.cart.Add(ctx, item); err != nil {
			fatal("Failed to add item: %v", err)
		}
		printSuccess("Added %s", id)
		printCart(ctx, a.cart)

	case "qty":
		if id == "" || delta == 0 {
			fs.Usage()
			os.Exit(1)
		}
		if err := a.cart.ChangeQuantity(ctx, id, delta); err != nil {
			fatal("Failed to change quantity: %v", err)
		}
		printCart(ctx, a.cart)

	case "remove":
		if id == "" {
			fs.Usage()
			os.Exit(1)
		}
		removed, err := a.cart.Remove(ctx, id)
		if err != nil {
			fatal("Failed to remove item: %v", err)
		}
		if !removed {
			printWarning("Nothing removed")
			return
		}
		printSuccess("Removed %s", id)
		printCart(ctx, a.cart)

	case "clear":
		cleared, err := a.cart.Clear(ctx)
		if err != nil {
			fatal("Failed to clear cart: %v", err)
		}
		if !cleared {
			printWarning("Cart not cleared")
			return
		}
		printSuccess("Cart cleared")
	}
}

func printCart(ctx context.Context, c *cart.Store) {
	items := c.Items(ctx)
	if quiet {
		fmt.Println(len(items))
		return
	}
	if len(items) == 0 {
		printInfo("Cart is empty")
		return
	}
	for _, it := range items {
		fmt.Printf("  %s%s%s  %s x%d  %s", colorCyan, it.ID, colorReset,
			it.Name, it.Quantity, model.FormatRupees(it.Price))
		if it.Color != "" || it.Size != "" {
			fmt.Printf("  %s(%s %s)%s", colorGray, it.Color, it.Size, colorReset)
		}
		fmt.Println()
	}
	sum := model.Summarize(items)
	fmt.Printf("  Subtotal: %s  Shipping: %s  %sTotal: %s%s\n",
		model.FormatRupees(sum.Subtotal), model.FormatRupees(sum.Shipping),
		colorGreen, model.FormatRupees(sum.Total), colorReset)
}

// =============================================================================
// AUTH COMMANDS
// =============================================================================

func runLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	addGlobalFlags(fs)
	var phone string
	fs.StringVar(&phone, "phone", "", "Phone number (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: threadlyctl login -phone NUMBER [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	applyGlobalFlags()

	if phone == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	if err := a.auth.RequestOTP(ctx, phone); err != nil {
		fatal("Failed to request OTP: %v", err)
	}
	printSuccess("OTP sent to %s", phone)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	addGlobalFlags(fs)
	var phone, otp string
	fs.StringVar(&phone, "phone", "", "Phone number (required)")
	fs.StringVar(&otp, "otp", "", "One-time code (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: threadlyctl verify -phone NUMBER -otp CODE [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	applyGlobalFlags()

	if phone == "" || otp == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	sess, err := a.auth.VerifyOTP(ctx, phone, otp)
	if err != nil {
		fatal("Verification failed: %v", err)
	}
	if quiet {
		fmt.Println(sess.UserID)
		return
	}
	printSuccess("Logged in")
	fmt.Printf("  User: %s%s%s (%s)\n", colorCyan, sess.Username, colorReset, sess.Role)
}

func runWhoami(args []string) {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
	addGlobalFlags(fs)
	fs.Parse(args)
	applyGlobalFlags()

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	sess := a.sessions.Snapshot(ctx)
	if sess.Empty() {
		if quiet {
			os.Exit(1)
		}
		printWarning("Not logged in")
		return
	}
	if quiet {
		fmt.Println(sess.UserID)
		return
	}
	fmt.Printf("  User ID:  %s%s%s\n", colorCyan, sess.UserID, colorReset)
	fmt.Printf("  Role:     %s\n", sess.Role)
	fmt.Printf("  Username: %s\n", sess.Username)
	if sess.Email != "" {
		fmt.Printf("  Email:    %s\n", sess.Email)
	}
	if sess.Phone != "" {
		fmt.Printf("  Phone:    %s\n", sess.Phone)
	}
}

func runLogout(args []string) {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	addGlobalFlags(fs)
	fs.Parse(args)
	applyGlobalFlags()

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	if err := a.sessions.Logout(ctx); err != nil {
		fatal("Logout failed: %v", err)
	}
	printSuccess("Logged out")
}

// =============================================================================
// AGENT COMMAND
// =============================================================================

func runAgent(args []string) {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	addGlobalFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: threadlyctl agent [options]\n\nServes MCP tools over stdio.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	applyGlobalFlags()
	// Stdio belongs to the MCP transport; prompts would corrupt the stream.
	yes = true

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		fatal("%v", err)
	}

	// Rebuild the cart without a confirmer so tools never block on a prompt.
	agentCart := cart.New(a.store, a.log)
	srv := agent.New(agentCart, a.sessions, a.log)
	if err := srv.Run(ctx); err != nil {
		fatal("Agent server stopped: %v", err)
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func addGlobalFlags(fs *flag.FlagSet) {
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&yes, "yes", false, "Assume yes for confirmation prompts")
}

func applyGlobalFlags() {
	if noColor {
		disableColors()
	}
}

func printSuccess(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...any) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
