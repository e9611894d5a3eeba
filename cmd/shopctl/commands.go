package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deepak445566/cv/internal/client"
	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/logger"
)

type cliOptions struct {
	apiURL    string
	statePath string
	verbose   bool
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopctl/state.json"
	}
	return filepath.Join(home, ".shopctl", "state.json")
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "Storefront command line client",
		Long:          `shopctl signs in to the storefront API, keeps a local cart and places orders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("SHOPCTL_API", "http://localhost:8080"), "storefront API base URL")
	root.PersistentFlags().StringVar(&opts.statePath, "state", defaultStatePath(), "path of the local state file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log client activity to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newProductsCmd(opts),
		newCartCmd(opts),
		newAddressesCmd(opts),
		newCheckoutCmd(opts),
		newOrdersCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *cliOptions) client(cmd *cobra.Command) (*client.Client, error) {
	log := zap.NewNop()
	if o.verbose {
		var err error
		if log, err = logger.NewWithOutput("debug", "console", cmd.ErrOrStderr()); err != nil {
			return nil, err
		}
	}
	return client.New(o.apiURL, client.NewFileStore(o.statePath),
		client.WithLogger(log),
		client.WithOnSyncError(func(err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "cart sync failed, using the server cart: %v\n", err)
		}),
	)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func requireSession(c *client.Client) error {
	if !c.Authenticated() {
		return errors.New("not logged in, run `shopctl login` first")
	}
	return nil
}

func newLoginCmd(opts *cliOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge the local cart into your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			user, err := c.Login(ctx, email, passwordOrEnv(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Email, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or SHOPCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(opts *cliOptions) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			user, err := c.Register(ctx, email, passwordOrEnv(password), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or SHOPCTL_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func passwordOrEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("SHOPCTL_PASSWORD")
}

func newLogoutCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if err := c.Logout(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "server logout failed: %v\n", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if !c.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			user, err := c.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> role=%s id=%s\n", user.Name, user.Email, user.Role, user.ID)
			return nil
		},
	}
}

func newProductsCmd(opts *cliOptions) *cobra.Command {
	products := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalogue",
	}

	var query client.ProductQuery
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			page, err := c.Products(ctx, query)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSKU\tNAME\tPRICE\tSTOCK")
			for _, p := range page.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.SKU, p.Name, p.Price.StringFixed(2), p.Stock)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d products\n", page.Page, len(page.Items), page.Total)
			return nil
		},
	}
	list.Flags().StringVarP(&query.Q, "query", "q", "", "search text")
	list.Flags().StringVar(&query.Category, "category", "", "category filter")
	list.Flags().StringVar(&query.Sort, "sort", "", "sort order (newest, price_asc, price_desc, name)")
	list.Flags().BoolVar(&query.InStock, "in-stock", false, "only products in stock")
	list.Flags().IntVar(&query.Page, "page", 1, "page number")
	list.Flags().IntVar(&query.PerPage, "per-page", 20, "page size")

	products.AddCommand(list)
	return products
}

func newCartCmd(opts *cliOptions) *cobra.Command {
	cart := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the cart",
	}

	// mutate applies a local change and, when signed in, pushes it right away.
	mutate := func(cmd *cobra.Command, apply func(*client.Cart)) error {
		c, err := opts.client(cmd)
		if err != nil {
			return err
		}
		apply(c.Cart())
		if c.Authenticated() {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := c.Cart().Flush(ctx); err != nil {
				return err
			}
		}
		printCart(cmd.OutOrStdout(), c.Cart().Items())
		return nil
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if !c.Authenticated() {
				printCart(cmd.OutOrStdout(), c.Cart().Items())
				return nil
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			priced, err := c.Cart().Fetch(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tUNIT\tTOTAL")
			for _, line := range priced.Lines {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", line.ProductID, line.Name, line.Quantity, line.UnitPrice.StringFixed(2), line.LineTotal.StringFixed(2))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items, subtotal %s\n", priced.Count, priced.Subtotal.StringFixed(2))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				var err error
				if qty, err = parseQuantity(args[1]); err != nil {
					return err
				}
			}
			return mutate(cmd, func(ct *client.Cart) { ct.Add(args[0], qty) })
		},
	}

	set := &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set the quantity of a product (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty < 0 {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return mutate(cmd, func(ct *client.Cart) { ct.Set(args[0], qty) })
		},
	}

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ct *client.Cart) { ct.Remove(args[0]) })
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(ct *client.Cart) { ct.Clear() })
		},
	}

	cart.AddCommand(show, add, set, remove, clearCmd)
	return cart
}

func parseQuantity(raw string) (int, error) {
	qty, err := strconv.Atoi(raw)
	if err != nil || qty <= 0 {
		return 0, fmt.Errorf("invalid quantity %q", raw)
	}
	return qty, nil
}

func printCart(out io.Writer, items map[string]int) {
	if len(items) == 0 {
		fmt.Fprintln(out, "Cart is empty")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tQTY")
	for id, qty := range items {
		fmt.Fprintf(w, "%s\t%d\n", id, qty)
	}
	_ = w.Flush()
}

func newAddressesCmd(opts *cliOptions) *cobra.Command {
	addresses := &cobra.Command{
		Use:   "addresses",
		Short: "Manage shipping addresses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(c); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			items, err := c.Addresses(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tADDRESS\tDEFAULT")
			for _, a := range items {
				fmt.Fprintf(w, "%s\t%s\t%s, %s %s, %s\t%t\n", a.ID, a.FullName, a.Line1, a.PostalCode, a.City, a.Country, a.IsDefault)
			}
			return w.Flush()
		},
	}

	var req dto.AddressRequest
	var phone string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(c); err != nil {
				return err
			}
			if phone = strings.TrimSpace(phone); phone != "" {
				req.Phone = &phone
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			address, err := c.CreateAddress(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Address %s saved\n", address.ID)
			return nil
		},
	}
	add.Flags().StringVar(&req.FullName, "name", "", "recipient name")
	add.Flags().StringVar(&req.Line1, "line1", "", "street and number")
	add.Flags().StringVar(&req.City, "city", "", "city")
	add.Flags().StringVar(&req.PostalCode, "postal-code", "", "postal code")
	add.Flags().StringVar(&req.Country, "country", "", "ISO country code")
	add.Flags().StringVar(&phone, "phone", "", "contact phone")
	add.Flags().BoolVar(&req.IsDefault, "default", false, "make this the default address")
	for _, name := range []string{"name", "line1", "city", "postal-code", "country"} {
		_ = add.MarkFlagRequired(name)
	}

	addresses.AddCommand(list, add)
	return addresses
}

func newCheckoutCmd(opts *cliOptions) *cobra.Command {
	var addressID string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(c); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if addressID == "" {
				if addressID, err = defaultAddress(ctx, c); err != nil {
					return err
				}
			}
			order, err := c.Checkout(ctx, addressID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed, total %s (%s)\n", order.Number, order.Total.StringFixed(2), order.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&addressID, "address", "", "address id (defaults to the default address)")
	return cmd
}

func defaultAddress(ctx context.Context, c *client.Client) (string, error) {
	items, err := c.Addresses(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range items {
		if a.IsDefault {
			return a.ID.String(), nil
		}
	}
	return "", errors.New("no default address, pass --address")
}

func newOrdersCmd(opts *cliOptions) *cobra.Command {
	orders := &cobra.Command{
		Use:   "orders",
		Short: "Review orders",
	}

	var page, perPage int
	list := &cobra.Command{
		Use:   "list",
		Short: "List your orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(c); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			result, err := c.Orders(ctx, page, perPage)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tSTATUS\tTOTAL\tPLACED")
			for _, o := range result.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Number, o.Status, o.Total.StringFixed(2), o.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&perPage, "per-page", 20, "page size")

	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a pending or paid order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := requireSession(c); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			order, err := c.CancelOrder(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", order.Number, order.Status)
			return nil
		},
	}

	orders.AddCommand(list, cancelCmd)
	return orders
}
