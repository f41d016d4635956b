package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"price-resolution-api/internal/app"
	"price-resolution-api/internal/config"
	"price-resolution-api/internal/models"
	"price-resolution-api/pkg/logger"
)

// Resolver is the part of the resolution service the commands use.
type Resolver interface {
	ResolvePrice(ctx context.Context, brand, name, variant, region string) (*models.PriceCandidate, error)
	ResolveRating(ctx context.Context, fullName string) (*models.RatingCandidate, error)
	Resolve(ctx context.Context, q models.ProductQuery) (*models.ResolutionResult, error)
	Compare(ctx context.Context, products []models.ProductQuery, region string) ([]*models.ResolutionResult, error)
	ResolveRegional(ctx context.Context, brand, name, variant string) (*models.RegionalComparison, error)
}

type options struct {
	configPath string
	verbose    bool
	timeout    time.Duration
}

// builder opens a Resolver for one command run. The returned func releases it.
type builder func(ctx context.Context, opts *options, stderr io.Writer) (Resolver, func(), error)

func NewRootCmd() *cobra.Command {
	return newRootCmd(buildService)
}

func newRootCmd(build builder) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a product's price and rating",
		Long: `resolve finds one trustworthy price and one provenanced rating for a product
in a Gulf market, using the same pipeline as the HTTP service.

Examples:
  resolve price --brand Apple --name "iPhone 16 Pro Max" --variant 256GB --region uae
  resolve rating "Sony WH-1000XM5"
  resolve compare "Philips Air Fryer XL" "Ninja Air Fryer Max" --region bahrain
  resolve regional --brand Philips --name "Air Fryer XL"`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./resolver.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr at debug level")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall timeout")

	root.AddCommand(
		newPriceCmd(opts, build),
		newRatingCmd(opts, build),
		newResolveCmd(opts, build),
		newCompareCmd(opts, build),
		newRegionalCmd(opts, build),
	)
	return root
}

type productFlags struct {
	brand, name, variant, region string
}

func (f *productFlags) register(cmd *cobra.Command, withRegion bool) {
	cmd.Flags().StringVar(&f.brand, "brand", "", "brand, e.g. Apple")
	cmd.Flags().StringVar(&f.name, "name", "", "product name, e.g. \"iPhone 16 Pro Max\"")
	cmd.Flags().StringVar(&f.variant, "variant", "", "variant, e.g. 256GB")
	if withRegion {
		cmd.Flags().StringVar(&f.region, "region", models.DefaultRegion, "region name or country code")
	}
	_ = cmd.MarkFlagRequired("name")
}

func newPriceCmd(opts *options, build builder) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Resolve the best price in one region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, build, func(ctx context.Context, r Resolver) (interface{}, error) {
				p, err := r.ResolvePrice(ctx, f.brand, f.name, f.variant, f.region)
				if err != nil {
					return nil, err
				}
				out := map[string]interface{}{"price": p}
				if p != nil {
					out["display"] = p.Display()
				}
				return out, nil
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newRatingCmd(opts *options, build builder) *cobra.Command {
	return &cobra.Command{
		Use:   "rating <product name>",
		Short: "Resolve a rating with its source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, build, func(ctx context.Context, r Resolver) (interface{}, error) {
				rating, err := r.ResolveRating(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return rating.APIResponse(), nil
			})
		},
	}
}

func newResolveCmd(opts *options, build builder) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Resolve price, rating, specs and pros/cons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, build, func(ctx context.Context, r Resolver) (interface{}, error) {
				return r.Resolve(ctx, models.ProductQuery{Brand: f.brand, Name: f.name, Variant: f.variant, Region: f.region})
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newCompareCmd(opts *options, build builder) *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "compare <product> <product> [product...]",
		Short: "Resolve two to four products side by side",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			products := make([]models.ProductQuery, len(args))
			for i, a := range args {
				products[i] = models.ProductQuery{Name: a}
			}
			return run(cmd, opts, build, func(ctx context.Context, r Resolver) (interface{}, error) {
				return r.Compare(ctx, products, region)
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", models.DefaultRegion, "region name or country code")
	return cmd
}

func newRegionalCmd(opts *options, build builder) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "regional",
		Short: "Compare one product's price across Gulf markets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, build, func(ctx context.Context, r Resolver) (interface{}, error) {
				return r.ResolveRegional(ctx, f.brand, f.name, f.variant)
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func run(cmd *cobra.Command, opts *options, build builder, fn func(context.Context, Resolver) (interface{}, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	r, release, err := build(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer release()

	out, err := fn(ctx, r)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func buildService(ctx context.Context, opts *options, stderr io.Writer) (Resolver, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	log := zerolog.Nop()
	if opts.verbose {
		log = logger.New(logger.Config{Level: "debug", Format: "console", Output: stderr, Service: "resolve"})
	}

	a := app.Build(ctx, cfg, log)
	return a.Service, func() {
		if err := a.Close(); err != nil {
			fmt.Fprintln(stderr, "close:", err)
		}
	}, nil
}
