package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trussview/internal/server"
)

type serveFlags struct {
	addr    string
	backend backendFlags
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve <output-dir>",
		Short: "Serve rendered figures and manifests over HTTP",
		Long: `Serve exposes the images of an output directory and the manifest of the
latest run. With --mongo-uri manifests are read from the shared store
instead of the manifest.json in the directory.

Routes: /manifest.json, /runs/{id}, /images/{name}?format=png, /healthz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", defaultAddr, "listen address")
	f.backend.registerStore(cmd)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, dir string, f serveFlags) error {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("output directory %s does not exist", dir)
	}
	store, err := newStore(ctx, f.backend, dir)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	logger := loggerFromContext(ctx)
	printSuccess("Serving %s", StyleHighlight.Render(dir))
	printKeyValue("Manifest", StyleLink.Render("http://"+f.addr+"/manifest.json"))
	logger.Debug("listening", "addr", f.addr)

	err = server.New(store, dir, logger).ListenAndServe(ctx, f.addr)
	if errors.Is(err, context.Canceled) {
		printInfo("Server stopped")
		return nil
	}
	return err
}
