package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vnmchuo/llm-relay/internal/auth"
	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/provider"
)

func modelsCmd() *cobra.Command {
	var modality string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models in registration order",
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, ok := catalog.ParseModality(modality)
			if !ok {
				return fmt.Errorf("modality must be text or image, got %q", modality)
			}

			router := offlineRouter()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, id := range router.Models(mod) {
				p, err := router.Resolve(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", p.Name(), id)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&modality, "modality", "m", "text", "text or image")
	return cmd
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List providers with their text and image model counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "provider\ttext\timage")
			for _, p := range offlineRouter().Providers() {
				models := p.Models()
				fmt.Fprintf(w, "%s\t%d\t%d\n", p.Name(),
					len(catalog.Filter(models, catalog.ModalityText)),
					len(catalog.Filter(models, catalog.ModalityImage)))
			}
			return w.Flush()
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <model>",
		Short: "Print the provider serving a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := offlineRouter().Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Name())
			return nil
		},
	}
}

func costCmd() *cobra.Command {
	var (
		image          provider.ImageParams
		pricePerCredit float64
	)

	cmd := &cobra.Command{
		Use:   "cost <model> <response.json|->",
		Short: "Price a raw vendor response body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, path := args[0], args[1]

			var (
				body []byte
				err  error
			)
			if path == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if !json.Valid(body) {
				return fmt.Errorf("%s is not valid JSON", path)
			}

			p, err := offlineRouter().Resolve(model)
			if err != nil {
				return err
			}
			cost, err := p.CalculateCost(model, json.RawMessage(body), provider.CostParams{Image: image})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider:     %s\n", color.CyanString(p.Name()))
			fmt.Fprintf(out, "cost_usd:     %.8f\n", cost)
			fmt.Fprintf(out, "millicredits: %d\n", billing.Millicredits(cost, pricePerCredit))
			return nil
		},
	}

	cmd.Flags().IntVar(&image.N, "n", 1, "image count")
	cmd.Flags().StringVar(&image.Size, "size", "", "image size, e.g. 1024x1024")
	cmd.Flags().StringVar(&image.Quality, "quality", "", "image quality, e.g. standard or hd")
	cmd.Flags().Float64Var(&pricePerCredit, "price-per-credit", 0.01, "USD per credit")
	return cmd
}

func millicreditsCmd() *cobra.Command {
	var pricePerCredit float64

	cmd := &cobra.Command{
		Use:   "millicredits <cost_usd>",
		Short: "Convert a USD cost to millicredits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid cost %q: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), billing.Millicredits(cost, pricePerCredit))
			return nil
		},
	}

	cmd.Flags().Float64Var(&pricePerCredit, "price-per-credit", 0.01, "USD per credit")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		tenant string
		org    string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 identity token for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("RELAY_AUTH__JWT_SECRET")
			}
			if tenant == "" {
				return fmt.Errorf("--tenant is required")
			}
			verifier := auth.NewTokenVerifier(secret)
			token, err := verifier.Issue(auth.Identity{TenantID: tenant, OrgID: org}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $RELAY_AUTH__JWT_SECRET)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&org, "org", "", "org id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
