package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/filecoin-project/specs-actors/actors/abi"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v2"

	allocator "github.com/filecoin-project/go-sector-allocator"
	"github.com/filecoin-project/go-sector-allocator/config"
	"github.com/filecoin-project/go-sector-allocator/staging"
)

var log = logging.Logger("main")

func main() {
	logging.SetLogLevel("*", "INFO") //nolint:errcheck

	app := &cli.App{
		Name:  "sector-allocator",
		Usage: "Packs piece files into staged sectors",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "~/.sector-allocator/config.toml",
				Usage: "path to the TOML config file; defaults apply when it does not exist",
			},
		},
		Commands: []*cli.Command{
			packCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

var packCmd = &cli.Command{
	Name:      "pack",
	Usage:     "Write each piece file into a staged sector and print where it went",
	ArgsUsage: "<piece file>...",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() == 0 {
			return xerrors.New("expected at least one piece file")
		}

		cfgPath, err := homedir.Expand(cctx.String("config"))
		if err != nil {
			return err
		}

		cfg, err := config.FromFile(cfgPath, config.Default())
		if err != nil {
			return xerrors.Errorf("loading config: %w", err)
		}

		a, err := allocator.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warnf("closing allocator: %+v", err)
			}
		}()

		ctx := context.Background()
		for _, path := range cctx.Args().Slice() {
			st, err := os.Stat(path)
			if err != nil {
				return err
			}

			num, err := a.AddPieceFromFile(ctx, filepath.Base(path), abi.UnpaddedPieceSize(st.Size()), path)
			if err != nil {
				return xerrors.Errorf("packing %s: %w", path, err)
			}

			fmt.Printf("%s -> sector %d\n", path, num)
		}

		tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "Sector\tStatus\tPieces\tAccess") //nolint:errcheck
		for _, sector := range a.ListStagedSectors() {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", sector.SectorNum, staging.SealStatuses[sector.SealStatus], len(sector.Pieces), sector.SectorAccess) //nolint:errcheck
		}

		return tw.Flush()
	},
}
