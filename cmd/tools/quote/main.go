package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/printshop-checkout/internal/catalog"
	"github.com/noah-isme/printshop-checkout/internal/checkout"
	"github.com/noah-isme/printshop-checkout/internal/common"
	"github.com/noah-isme/printshop-checkout/internal/pricing"
)

// quote prices an order offline with the same rules as the checkout endpoint.
// Exit code 0 = priced, 1 = order rejected, 2 = usage or configuration error.
func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	product := fs.String("product", checkout.DefaultProduct, "product id")
	qty := fs.String("qty", "", "quantity (cantidad)")
	envio := fs.String("envio", string(pricing.ShippingNormal), "shipping method: normal or express")
	extras := fs.String("extras", "", "comma separated key=amount pairs, e.g. gramaje=1.5,laminado=2")
	catalogPath := fs.String("catalog", os.Getenv("CATALOG_PATH"), "catalog YAML file; the built-in catalog when empty")
	tax := fs.String("tax", os.Getenv("TAX_RATE"), "tax rate, e.g. 0.21")
	asJSON := fs.Bool("json", false, "print the breakdown as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		return 2
	}
	cfg := pricing.DefaultConfig()
	if strings.TrimSpace(*tax) != "" {
		rate, err := decimal.NewFromString(strings.Replace(strings.TrimSpace(*tax), ",", ".", 1))
		if err != nil {
			fmt.Fprintf(stderr, "quote: invalid tax rate %q\n", *tax)
			return 2
		}
		cfg.TaxRate = rate
	}
	calc, err := pricing.NewCalculator(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		return 2
	}
	svc, err := checkout.NewService(checkout.ServiceConfig{Catalog: cat, Calculator: calc, Logger: zerolog.Nop()})
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		return 2
	}

	raw := map[string]any{"product": *product, "cantidad": *qty, "envio": *envio}
	fields, err := parseExtras(*extras)
	if err != nil {
		fmt.Fprintf(stderr, "quote: %v\n", err)
		return 2
	}
	if len(fields) > 0 {
		raw["extras"] = fields
	}

	q, err := quote(svc, raw)
	if err != nil {
		appErr := common.AsAppError(err)
		fmt.Fprintf(stderr, "quote: %s: %v\n", appErr.Code, err)
		if errors.Is(err, common.ErrMissingConfiguration) {
			return 2
		}
		return 1
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(q.Breakdown)
		return 0
	}
	printQuote(stdout, q)
	return 0
}

func quote(svc *checkout.Service, raw map[string]any) (checkout.Quote, error) {
	order, err := checkout.ParseOrder(raw)
	if err != nil {
		return checkout.Quote{}, err
	}
	return svc.Quote(context.Background(), order)
}

func parseExtras(value string) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, amount, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("extra %q must be key=amount", pair)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(amount)
	}
	return out, nil
}

func printQuote(w io.Writer, q checkout.Quote) {
	b := q.Breakdown
	cur := strings.ToUpper(b.Currency)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "product\t%s (%s)\n", q.Product.Name, q.Product.ID)
	fmt.Fprintf(tw, "tier\t%d @ %s\n", q.Tier.Quantity, q.Tier.UnitPrice.String())
	fmt.Fprintf(tw, "unit with margin\t%s\n", b.UnitPriceWithMargin.String())
	fmt.Fprintf(tw, "items (%d)\t%s %s\n", b.Quantity, b.ItemsTotal.StringFixed(2), cur)
	for _, e := range q.Extras {
		fmt.Fprintf(tw, "  extra %s\t%s %s\n", e.Key, e.Amount.StringFixed(2), cur)
	}
	fmt.Fprintf(tw, "extras\t%s %s\n", b.ExtrasTotal.StringFixed(2), cur)
	fmt.Fprintf(tw, "shipping (%s)\t%s %s\n", b.ShippingMethod, b.ShippingCost.StringFixed(2), cur)
	if b.TaxEnabled() {
		fmt.Fprintf(tw, "tax (%s)\t%s %s\n", b.TaxRate.String(), b.TaxAmount.StringFixed(2), cur)
	}
	fmt.Fprintf(tw, "total\t%s %s\n", b.Total.StringFixed(2), cur)
	fmt.Fprintf(tw, "minor units\t%d\n", b.TotalMinorUnits)
	_ = tw.Flush()
}
