package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chazu/scriptc/cache"
)

func runCache(p *project, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("cache needs a subcommand: stats, prune or clear")
	}
	c, err := cache.Open(p.manifest.CachePath())
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "stats":
		s, err := c.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  entries: %d\n  bytes:   %d\n", c.Path(), s.Entries, s.Bytes)
	case "prune":
		fs := flag.NewFlagSet("cache prune", flag.ExitOnError)
		age := fs.Duration("age", 30*24*time.Hour, "Remove entries older than this")
		fs.Parse(args[1:])
		n, err := c.Prune(*age)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d entries\n", n)
	case "clear":
		if err := c.Clear(); err != nil {
			return err
		}
		fmt.Println("cache cleared")
	default:
		return fmt.Errorf("unknown cache subcommand %q", args[0])
	}
	return nil
}
