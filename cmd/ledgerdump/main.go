package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"

	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/loader"
)

var (
	cli struct {
		File    string `help:"Ledger file to load." arg:"" type:"existingfile"`
		Records bool   `help:"Dump the raw records instead of the loaded book."`
	}
)

func main() {
	ctx := kong.Parse(&cli)

	result, err := loader.New(loader.WithFollowIncludes()).Load(context.Background(), cli.File)
	ctx.FatalIfErrorf(err)

	if cli.Records {
		repr.Println(result.Records)
		return
	}

	book := ledger.New(nil)
	if err := book.Load(context.Background(), result.Records); err != nil {
		repr.Println(err)
	}
	repr.Println(book.Snapshot())
	repr.Println(book.Groups())
}
