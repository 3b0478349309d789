package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/0xTanzim/rushtpl"
)

func newRenderCmd(g *globalFlags) *cobra.Command {
	var (
		dataPath string
		outPath  string
		locale   string
	)
	cmd := &cobra.Command{
		Use:   "render NAME",
		Short: "Render a named template",
		Example: `  rushtpl render home --data page.yaml
  rushtpl render blog/post --data post.json --out public/post.html --locale de`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(dataPath)
			if err != nil {
				return err
			}
			e, cleanup, err := g.engine(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var opts []rushtpl.RenderOption
			if locale != "" {
				opts = append(opts, rushtpl.WithLocale(locale))
			}
			if outPath == "" {
				return e.RenderTemplate(cmd.Context(), cmd.OutOrStdout(), args[0], data, opts...)
			}

			var buf bytes.Buffer
			if err := e.RenderTemplate(cmd.Context(), &buf, args[0], data, opts...); err != nil {
				return err
			}
			if dir := filepath.Dir(outPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}
			}
			if err := atomic.WriteFile(outPath, &buf); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "JSON or YAML file with render data")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write output to this file instead of stdout")
	cmd.Flags().StringVar(&locale, "locale", "", "locale for t, tn and currency")
	return cmd
}

// readData decodes a JSON file by extension, anything else as YAML.
func readData(path string) (map[string]any, error) {
	data := map[string]any{}
	if path == "" {
		return data, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &data)
	} else {
		err = yaml.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing data %s: %w", path, err)
	}
	return data, nil
}
