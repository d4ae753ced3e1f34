package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/filecrate/filecrate/config"
	"github.com/filecrate/filecrate/internal/metadata"
	"github.com/filecrate/filecrate/internal/storage"
	"github.com/filecrate/filecrate/pkg/env"
	"github.com/filecrate/filecrate/pkg/httpserver"
	"github.com/filecrate/filecrate/pkg/logging"
)

func main() {
	env.LoadEnv()

	app := &cli.App{
		Name:  "filecrate",
		Usage: "Local file storage with an HTTP surface",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   ".",
				Usage:   "directory containing config.yaml",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "verbose logging",
			},
		},
		Before: func(c *cli.Context) error {
			logging.InitLogger(c.Bool("debug"))
			config.LoadConfig(c.String("config"))
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			putCommand(),
			getCommand(),
			rmCommand(),
			lsCommand(),
			statCommand(),
			urlCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Log.Fatal(err)
	}
}

func newStore() (*storage.FileSystemStorage, error) {
	opts, err := config.Config.StorageOptions()
	if err != nil {
		return nil, err
	}
	return storage.NewFileSystemStorage(opts)
}

// openRecords opens the upload-record store when one is configured.
// Callers must Close the returned store; a nil store means disabled.
func openRecords() (*metadata.Store, error) {
	if config.Config.MetadataPath == "" {
		return nil, nil
	}
	return metadata.Open(config.Config.MetadataPath)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP file server",
		Action: func(c *cli.Context) error {
			store, err := newStore()
			if err != nil {
				return err
			}
			records, err := openRecords()
			if err != nil {
				return err
			}
			if records != nil {
				defer records.Close()
			}

			srv := httpserver.New(store, records, logging.Log, httpserver.Options{
				APIKeyHash:     config.Config.APIKeyHash,
				MaxUploadBytes: config.Config.MaxUploadMB << 20,
			})
			return srv.ListenAndServe(fmt.Sprintf(":%d", config.Config.Port))
		},
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Store a local file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "desired name in the store (defaults to the file's base name)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("put takes exactly one file argument", 1)
			}
			src := c.Args().First()

			store, err := newStore()
			if err != nil {
				return err
			}

			f, err := os.Open(src)
			if err != nil {
				return err
			}
			defer f.Close()

			name := c.String("name")
			if name == "" {
				name = filepath.Base(src)
			}

			hasher := sha256.New()
			stored, err := store.Save(name, io.TeeReader(f, hasher))
			if err != nil {
				return err
			}

			if records, err := openRecords(); err == nil && records != nil {
				defer records.Close()
				size, err := store.Size(stored)
				if err != nil {
					return err
				}
				rec := metadata.NewRecord(stored, filepath.Base(src), "", size, hex.EncodeToString(hasher.Sum(nil)))
				if err := records.Put(rec); err != nil {
					logging.Log.WithError(err).Warn("failed to write upload record")
				}
			} else if err != nil {
				logging.Log.WithError(err).Warn("could not open upload records")
			}

			fmt.Println(stored)
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Read a stored file to stdout or a destination path",
		ArgsUsage: "<name> [dest]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return cli.Exit("get takes a name and an optional destination", 1)
			}

			store, err := newStore()
			if err != nil {
				return err
			}

			rc, err := store.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer rc.Close()

			var out io.Writer = os.Stdout
			if c.NArg() == 2 {
				f, err := os.Create(c.Args().Get(1))
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			_, err = io.Copy(out, rc)
			return err
		},
	}
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a stored file",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("rm takes exactly one name argument", 1)
			}
			name := c.Args().First()

			store, err := newStore()
			if err != nil {
				return err
			}
			if err := store.Delete(name); err != nil {
				return err
			}
			if records, err := openRecords(); err == nil && records != nil {
				defer records.Close()
				if err := records.Delete(name); err != nil {
					logging.Log.WithError(err).Warn("failed to delete upload record")
				}
			}
			return nil
		},
	}
}

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List upload records",
		Action: func(c *cli.Context) error {
			records, err := openRecords()
			if err != nil {
				return err
			}
			if records == nil {
				return cli.Exit("upload records are disabled (set metadata_path)", 1)
			}
			defer records.Close()

			recs, err := records.List()
			if err != nil {
				return err
			}
			for _, rec := range recs {
				fmt.Printf("%s\t%d\t%s\n", rec.StoredName, rec.Size, rec.SHA256)
			}
			return nil
		},
	}
}

func statCommand() *cli.Command {
	return &cli.Command{
		Name:      "stat",
		Usage:     "Report existence and size of a stored file",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("stat takes exactly one name argument", 1)
			}
			name := c.Args().First()

			store, err := newStore()
			if err != nil {
				return err
			}
			ok, err := store.Exists(name)
			if err != nil {
				return err
			}
			if !ok {
				return cli.Exit(fmt.Sprintf("%s: not found", name), 1)
			}
			size, err := store.Size(name)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%d bytes\n", name, size)
			return nil
		},
	}
}

func urlCommand() *cli.Command {
	return &cli.Command{
		Name:      "url",
		Usage:     "Print the public URL of a stored file",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("url takes exactly one name argument", 1)
			}

			store, err := newStore()
			if err != nil {
				return err
			}
			u, err := store.URL(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Println(u)
			return nil
		},
	}
}
