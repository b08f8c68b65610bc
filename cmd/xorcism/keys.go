package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/xorcism-go/internal/dao"
)

var keysCommand = &cli.Command{
	Name:  "keys",
	Usage: "Manage stored keys",
	Subcommands: []*cli.Command{
		{
			Name:  "add",
			Usage: "Store a named key",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Key `NAME`", Required: true},
				&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Material `KIND` (raw, hex, base64, passphrase)"},
				&cli.StringFlag{Name: "material", Aliases: []string{"m"}, Usage: "Key `MATERIAL`", EnvVars: []string{"XORCISM_KEY"}},
				&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Replace an existing key"},
			},
			Action: keysAddCmd,
		},
		{
			Name:   "list",
			Usage:  "List stored keys",
			Action: keysListCmd,
		},
		{
			Name:      "rm",
			Usage:     "Remove a stored key",
			ArgsUsage: "NAME",
			Action:    keysRemoveCmd,
		},
	},
}

func withKeys(c *cli.Context, fn func(keys *dao.KeyDAO) error) error {
	store, err := openStore(configFrom(c))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(dao.NewKeyDAO(store, nil))
}

func keysAddCmd(c *cli.Context) error {
	source := configFrom(c).Munger.DefaultSource
	if c.IsSet("source") {
		source = c.String("source")
	}
	profile := dao.KeyProfile{
		Name:     c.String("name"),
		Source:   source,
		Material: c.String("material"),
	}

	return withKeys(c, func(keys *dao.KeyDAO) error {
		var err error
		if c.Bool("force") {
			_, err = keys.Put(profile)
		} else {
			_, err = keys.Create(profile)
		}
		if errors.Is(err, dao.ErrKeyExists) {
			return fmt.Errorf("key %q already exists, use --force to replace it", profile.Name)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "stored key %s (%s)\n", profile.Name, profile.Source)
		return nil
	})
}

func keysListCmd(c *cli.Context) error {
	return withKeys(c, func(keys *dao.KeyDAO) error {
		profiles, err := keys.List()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSOURCE\tCREATED")
		for _, p := range profiles {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Source, p.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	})
}

func keysRemoveCmd(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("usage: xorcism keys rm NAME")
	}
	return withKeys(c, func(keys *dao.KeyDAO) error {
		if err := keys.Delete(name); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "removed key %s\n", name)
		return nil
	})
}
