package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/netguard"
)

type uploadFlags struct {
	method   string
	params   []string
	headers  []string
	field    string
	fileType string
	bearer   bool
	quiet    bool
}

// UploadCmd sends files as multipart/form-data.
func UploadCmd(env *Env) *cobra.Command {
	var f uploadFlags
	cmd := &cobra.Command{
		Use:   "upload <url> <file>...",
		Short: "Upload files as multipart/form-data",
		Long: `Upload one or more files as multipart/form-data through the configured client.

Each file is sent under --field and followed by a form field whose name and
value are both --file-type. Parameters are written as plain form fields before
the files.`,
		Example: `  netguard upload https://api.example.com/v1/files ./report.pdf --bearer -p userId=42`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]netguard.UploadPart, 0, len(args)-1)
			for _, path := range args[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				parts = append(parts, netguard.UploadPart{
					Data:      data,
					FieldName: f.field,
					FileName:  filepath.Base(path),
					FileType:  f.fileType,
				})
			}
			params, err := parseParams(f.params)
			if err != nil {
				return err
			}
			headers, err := parseHeaders(f.headers, f.bearer)
			if err != nil {
				return err
			}
			req := netguard.APIRequest{URL: args[0], Method: strings.ToUpper(f.method), Parameters: params, Headers: headers}

			var progress netguard.ProgressFunc
			if !f.quiet {
				progress = func(fraction float64) {
					fmt.Fprintf(env.Stderr, "\rupload: %3.0f%%", fraction*100)
					if fraction >= 1 {
						fmt.Fprintln(env.Stderr)
					}
				}
			}

			return env.withApp(cmd, func(a *app) error {
				body, _, err := netguard.Upload[[]byte](cmd.Context(), a.client, req, parts, progress)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(env.Stdout, string(body))
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&f.method, "method", "X", http.MethodPost, "HTTP method")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "form parameter key=value")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "request header \"Name: value\"")
	cmd.Flags().StringVar(&f.field, "field", "", "form field name for files (default \"File\")")
	cmd.Flags().StringVar(&f.fileType, "file-type", "", "name and value of the field sent after each file (default \"FileType\")")
	cmd.Flags().BoolVar(&f.bearer, "bearer", false, "send the stored bearer token")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not report progress")
	return cmd
}
