// Package agent exposes the cart and session stores as MCP tools, so an
// assistant can drive shopping state the same way portal pages do.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"threadly/internal/cart"
	"threadly/internal/model"
	"threadly/internal/session"
)

// Server wires the stores behind MCP tool handlers.
type Server struct {
	cart     *cart.Store
	sessions *session.Store
	log      *slog.Logger
}

// New creates the agent surface over the given stores.
func New(cartStore *cart.Store, sessions *session.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cart: cartStore, sessions: sessions, log: logger}
}

// === Tool Input/Output Types ===

// AddItemInput is the input schema for the add_to_cart tool.
type AddItemInput struct {
	ID    string `json:"id" jsonschema:"product id,required"`
	Name  string `json:"name,omitempty" jsonschema:"product display name"`
	Price string `json:"price,omitempty" jsonschema:"unit price in rupees, e.g. 1200.00"`
	Color string `json:"color,omitempty" jsonschema:"selected color"`
	Size  string `json:"size,omitempty" jsonschema:"selected size"`
}

// ChangeQuantityInput is the input schema for the change_quantity tool.
type ChangeQuantityInput struct {
	ID    string `json:"id" jsonschema:"product id,required"`
	Delta int    `json:"delta" jsonschema:"quantity change, negative to decrease,required"`
}

// RemoveItemInput is the input schema for the remove_item tool.
type RemoveItemInput struct {
	ID string `json:"id" jsonschema:"product id,required"`
}

// emptyInput is used by tools that take no arguments.
type emptyInput struct{}

// CartView is the tool output for every cart mutation and read.
type CartView struct {
	Items   []model.CartItem  `json:"items"`
	Summary model.CartSummary `json:"summary"`
	Empty   bool              `json:"empty"`
}

// SessionView is the whoami tool output.
type SessionView struct {
	Session  model.Session `json:"session"`
	LoggedIn bool          `json:"logged_in"`
}

// MCPServer creates an MCP server with the shopping tools registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "threadly-client",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Threadly shopping state. Use these tools to inspect and " +
				"mutate the local cart and to check the current session.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "view_cart",
		Description: "List the cart's line items and derived totals.",
	}, s.viewCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product as a new line with quantity 1. Duplicate ids are not merged.",
	}, s.addToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "change_quantity",
		Description: "Adjust the quantity of the first line matching a product id. Reaching zero removes the line.",
	}, s.changeQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_item",
		Description: "Remove the first line matching a product id.",
	}, s.removeItem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every line from the cart.",
	}, s.clearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "whoami",
		Description: "Show the stored session identity, if any.",
	}, s.whoami)

	return server
}

// Run serves the tools over stdio until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

// === Tool Handlers ===

func (s *Server) viewCart(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, CartView, error) {
	return nil, s.view(ctx), nil
}

func (s *Server) addToCart(ctx context.Context, req *mcp.CallToolRequest, input AddItemInput) (*mcp.CallToolResult, CartView, error) {
	if input.ID == "" {
		return nil, CartView{}, fmt.Errorf("id is required")
	}

	item := model.CartItem{
		ID:    input.ID,
		Name:  input.Name,
		Price: model.ParsePaise(input.Price),
		Color: input.Color,
		Size:  input.Size,
	}
	if err := s.cart.Add(ctx, item); err != nil {
		return nil, CartView{}, s.toolError(err)
	}
	return nil, s.view(ctx), nil
}

func (s *Server) changeQuantity(ctx context.Context, req *mcp.CallToolRequest, input ChangeQuantityInput) (*mcp.CallToolResult, CartView, error) {
	if input.ID == "" {
		return nil, CartView{}, fmt.Errorf("id is required")
	}
	if input.Delta == 0 {
		return nil, CartView{}, fmt.Errorf("delta must be non-zero")
	}

	if err := s.cart.ChangeQuantity(ctx, input.ID, input.Delta); err != nil {
		return nil, CartView{}, s.toolError(err)
	}
	return nil, s.view(ctx), nil
}

func (s *Server) removeItem(ctx context.Context, req *mcp.CallToolRequest, input RemoveItemInput) (*mcp.CallToolResult, CartView, error) {
	if input.ID == "" {
		return nil, CartView{}, fmt.Errorf("id is required")
	}

	removed, err := s.cart.Remove(ctx, input.ID)
	if err != nil {
		return nil, CartView{}, s.toolError(err)
	}
	if !removed {
		return nil, CartView{}, fmt.Errorf("no line with id %q", input.ID)
	}
	return nil, s.view(ctx), nil
}

func (s *Server) clearCart(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, CartView, error) {
	if _, err := s.cart.Clear(ctx); err != nil {
		return nil, CartView{}, s.toolError(err)
	}
	return nil, s.view(ctx), nil
}

func (s *Server) whoami(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, SessionView, error) {
	sess := s.sessions.Snapshot(ctx)
	return nil, SessionView{Session: sess, LoggedIn: !sess.Empty()}, nil
}

func (s *Server) view(ctx context.Context) CartView {
	items := s.cart.Items(ctx)
	return CartView{
		Items:   items,
		Summary: model.Summarize(items),
		Empty:   len(items) == 0,
	}
}

// toolError keeps structured errors readable for the agent without leaking
// internals.
func (s *Server) toolError(err error) error {
	if apiErr, ok := err.(*model.APIError); ok {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	s.log.Error("agent tool internal error", slog.String("error", err.Error()))
	return fmt.Errorf("internal error")
}
