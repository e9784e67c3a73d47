package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ambiyansyah-risyal/netguard"
)

var (
	// ErrInvalidParam is returned for a --param without "=".
	ErrInvalidParam = errors.New("parameter must be key=value")
	// ErrInvalidHeader is returned for a --header without ":".
	ErrInvalidHeader = errors.New("header must be \"Name: value\"")
	// ErrInvalidEncoding is returned for an unknown --encoding.
	ErrInvalidEncoding = errors.New("encoding must be json or url")
)

const outcomeOK = "OK"

type requestFlags struct {
	method      string
	params      []string
	headers     []string
	encoding    string
	bearer      bool
	repeat      int
	concurrency int
}

// RequestCmd sends one request, or --repeat copies of it.
func RequestCmd(env *Env) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "request <url>",
		Short: "Send a request and print the response body",
		Long: `Send a request through the configured client and print the response body.

With --repeat the same request is sent several times, --concurrency at a
time, and a summary of outcomes is printed instead. Identical requests inside
the throttle interval are rejected locally.`,
		Example: `  netguard request https://api.example.com/v1/me --bearer
  netguard request https://api.example.com/v1/items -X POST -p name=demo -p count=3
  netguard request https://api.example.com/v1/items --repeat 5 --concurrency 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.build(args[0])
			if err != nil {
				return err
			}
			if f.repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1")
			}
			return env.withApp(cmd, func(a *app) error {
				if f.repeat == 1 {
					body, _, err := a.client.Raw(cmd.Context(), req)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(env.Stdout, string(body))
					return err
				}
				return runRepeated(cmd, env, a, req, f.repeat, f.concurrency)
			})
		},
	}

	cmd.Flags().StringVarP(&f.method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "request parameter key=value; JSON values are decoded")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "request header \"Name: value\"")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "parameter encoding override (json, url)")
	cmd.Flags().BoolVar(&f.bearer, "bearer", false, "send the stored bearer token")
	cmd.Flags().IntVar(&f.repeat, "repeat", 1, "number of times to send the request")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "requests in flight at once with --repeat")
	return cmd
}

func (f *requestFlags) build(url string) (netguard.APIRequest, error) {
	req := netguard.APIRequest{URL: url, Method: strings.ToUpper(f.method)}

	params, err := parseParams(f.params)
	if err != nil {
		return req, err
	}
	req.Parameters = params

	headers, err := parseHeaders(f.headers, f.bearer)
	if err != nil {
		return req, err
	}
	req.Headers = headers

	if f.encoding != "" {
		enc, ok := netguard.ParseEncoding(f.encoding)
		if !ok {
			return req, fmt.Errorf("%w: %q", ErrInvalidEncoding, f.encoding)
		}
		req.Encoding = &enc
	}
	return req, nil
}

func parseParams(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(raw))
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParam, p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			params[key] = decoded
		} else {
			params[key] = value
		}
	}
	return params, nil
}

func parseHeaders(raw []string, bearer bool) (http.Header, error) {
	headers := make(http.Header)
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, h)
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if bearer {
		headers.Set("Authorization", "Bearer ")
	}
	return headers, nil
}

func runRepeated(cmd *cobra.Command, env *Env, a *app, req netguard.APIRequest, repeat, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	var (
		mu       sync.Mutex
		outcomes = map[string]int{}
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(concurrency)
	for i := 0; i < repeat; i++ {
		g.Go(func() error {
			_, _, err := a.client.Raw(ctx, req)
			key := outcomeOK
			if err != nil {
				key = netguard.KindOf(err).String()
			}
			mu.Lock()
			outcomes[key]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(env.Stdout, "%s: %d\n", k, outcomes[k]); err != nil {
			return err
		}
	}
	return nil
}
