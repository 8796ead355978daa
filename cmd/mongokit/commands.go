package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/mongokit/internal/core/events"
	"github.com/syntrixbase/mongokit/pkg/model"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
	"github.com/urfave/cli/v2"
)

func collectionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "collection",
		Aliases:  []string{"c"},
		Usage:    "Collection name",
		Required: true,
	}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "start", Usage: "First result to return, 1-based"},
		&cli.IntFlag{Name: "end", Usage: "Last result to return, inclusive"},
	}
}

// pageOf returns the page selected by --start and --end. A missing bound
// leaves the query unpaged.
func pageOf(c *cli.Context) *model.Page {
	if !c.IsSet("start") && !c.IsSet("end") {
		return nil
	}
	p := &model.Page{}
	if c.IsSet("start") {
		start := c.Int("start")
		p.StartIndex = &start
	}
	if c.IsSet("end") {
		end := c.Int("end")
		p.EndIndex = &end
	}
	return p
}

func jsonFlag(name, usage string, required bool) cli.Flag {
	return &cli.StringFlag{Name: name, Usage: usage + " (JSON, @file or - for stdin)", Required: required}
}

// argM reads a JSON object flag.
func argM(c *cli.Context, name string) (model.M, error) {
	data, err := readArg(c.String(name), c.App.Reader)
	if err != nil {
		return nil, err
	}
	return parseM(name, data)
}

func argD(c *cli.Context, name string) (model.D, error) {
	data, err := readArg(c.String(name), c.App.Reader)
	if err != nil {
		return nil, err
	}
	return parseD(name, data)
}

func argDocuments(c *cli.Context, name string) ([]model.M, error) {
	data, err := readArg(c.String(name), c.App.Reader)
	if err != nil {
		return nil, err
	}
	return parseDocuments(name, data)
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Connect to the configured server",
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			uri := m.Config().Storage.URI
			h, err := m.Registry().Acquire(ctx, uri)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "connected to %s (database %s)\n", types.RedactURI(uri), h.Database())
			return err
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "Print the document with the given _id",
		Flags: []cli.Flag{
			collectionFlag(),
			&cli.StringFlag{Name: "id", Usage: "Document _id; JSON values such as 42 are decoded", Required: true},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			coll := m.Client().Collection(m.Scope(c.String("collection")))
			doc, err := coll.GetDataByID(ctx, parseValue(c.String("id")))
			if err != nil {
				return err
			}
			return writeDocument(c.App.Writer, doc)
		},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "Print the documents matching a filter, or their count",
		Flags: append([]cli.Flag{
			collectionFlag(),
			jsonFlag("filter", "Query filter", false),
			&cli.StringSliceFlag{Name: "where", Usage: `Simple comparison such as "age>=21", may be repeated`},
			jsonFlag("projection", "Fields to return", false),
			jsonFlag("sort", "Sort specification", false),
			&cli.StringFlag{Name: "collation", Usage: "Collation locale"},
			&cli.BoolFlag{Name: "count", Usage: "Print the number of matches only"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			req, err := findRequest(c)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			res, err := m.Client().GetData(ctx, m.Scope(c.String("collection")), req)
			if err != nil {
				return err
			}
			if req.Mode == model.ModeCount {
				_, err = fmt.Fprintln(c.App.Writer, res.Count)
				return err
			}
			return writeDocuments(c.App.Writer, res.Documents)
		},
	}
}

func findRequest(c *cli.Context) (model.ReadRequest, error) {
	req := model.ReadRequest{Mode: model.ModeFind, Page: pageOf(c)}
	if c.Bool("count") {
		req.Mode = model.ModeCount
	}

	var err error
	if req.Filter, err = argM(c, "filter"); err != nil {
		return req, err
	}
	if where := c.StringSlice("where"); len(where) > 0 {
		filters := make(model.Filters, 0, len(where))
		for _, expr := range where {
			f, err := model.ParseFilter(expr)
			if err != nil {
				return req, err
			}
			filters = append(filters, f)
		}
		compiled, err := filters.ToM()
		if err != nil {
			return req, err
		}
		if req.Filter == nil {
			req.Filter = model.M{}
		}
		for k, v := range compiled {
			req.Filter[k] = v
		}
	}
	if req.Projection, err = argM(c, "projection"); err != nil {
		return req, err
	}
	if req.Sort, err = argD(c, "sort"); err != nil {
		return req, err
	}
	if locale := c.String("collation"); locale != "" {
		req.Collation = &model.Collation{Locale: locale}
	}
	return req, nil
}

func aggregateCommand() *cli.Command {
	return &cli.Command{
		Name:  "aggregate",
		Usage: "Run an aggregation pipeline",
		Flags: []cli.Flag{
			collectionFlag(),
			jsonFlag("pipeline", "Array of pipeline stages", true),
			&cli.BoolFlag{Name: "allow-disk-use", Usage: "Let stages write temporary files"},
			&cli.IntFlag{Name: "batch-size", Usage: "Cursor batch size"},
			&cli.DurationFlag{Name: "max-time", Usage: "Server side time limit"},
			&cli.StringFlag{Name: "comment", Usage: "Comment attached to the command"},
		},
		Action: func(c *cli.Context) error {
			pipeline, err := argDocuments(c, "pipeline")
			if err != nil {
				return err
			}
			req := model.ReadRequest{
				Mode:     model.ModeAggregate,
				Pipeline: pipeline,
				AggregateOptions: &model.AggregateOptions{
					AllowDiskUse: c.Bool("allow-disk-use"),
					BatchSize:    int32(c.Int("batch-size")),
					MaxTime:      c.Duration("max-time"),
					Comment:      c.String("comment"),
				},
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			res, err := m.Client().GetData(ctx, m.Scope(c.String("collection")), req)
			if err != nil {
				return err
			}
			return writeDocuments(c.App.Writer, res.Documents)
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Run a full-text search against the collection's search index",
		Flags: append([]cli.Flag{
			collectionFlag(),
			jsonFlag("spec", "Body of the $search stage", true),
			jsonFlag("projection", "Fields to return", false),
			jsonFlag("sort", "Sort specification", false),
			&cli.BoolFlag{Name: "count", Usage: "Include the total number of hits"},
		}, pageFlags()...),
		Action: func(c *cli.Context) error {
			req := model.SearchRequest{Page: pageOf(c), IncludeCount: c.Bool("count")}
			var err error
			if req.Spec, err = argM(c, "spec"); err != nil {
				return err
			}
			if req.Projection, err = argM(c, "projection"); err != nil {
				return err
			}
			if req.Sort, err = argD(c, "sort"); err != nil {
				return err
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			res, err := m.Client().Search(ctx, m.Scope(c.String("collection")), req)
			if err != nil {
				return err
			}
			out := model.D{}
			if res.Metadata != nil {
				out = append(out, model.E{Key: "metadata", Value: model.M{"total": res.Metadata.Total, "page": res.Metadata.Page}})
			}
			out = append(out, model.E{Key: "data", Value: res.Data})
			return writeDocument(c.App.Writer, out)
		},
	}
}

func writeCommand() *cli.Command {
	return &cli.Command{
		Name:  "write",
		Usage: "Insert, replace, update or delete documents",
		Flags: []cli.Flag{
			collectionFlag(),
			&cli.StringFlag{
				Name:     "kind",
				Usage:    "insertOne, replaceOne, updateOne, updateMany, deleteOne or deleteMany",
				Required: true,
			},
			jsonFlag("doc", "Document, replacement or update specification", false),
			jsonFlag("filter", "Query filter", false),
		},
		Action: func(c *cli.Context) error {
			doc, err := argM(c, "doc")
			if err != nil {
				return err
			}
			filter, err := argM(c, "filter")
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			res, err := m.Client().WriteData(ctx, m.Scope(c.String("collection")), model.WriteKind(c.String("kind")), doc, filter)
			if err != nil {
				return err
			}
			return writeResult(c.App.Writer, res)
		},
	}
}

func bulkCommand() *cli.Command {
	return &cli.Command{
		Name:  "bulk",
		Usage: "Submit many write operations in one request",
		Flags: []cli.Flag{
			collectionFlag(),
			&cli.StringFlag{
				Name:     "kind",
				Usage:    "insertBulk, replaceBulk, updateBulk, deleteBulk or allBulk",
				Required: true,
			},
			jsonFlag("docs", "Array of documents or operations", true),
			&cli.BoolFlag{Name: "ordered", Usage: "Stop at the first failing operation"},
		},
		Action: func(c *cli.Context) error {
			docs, err := argDocuments(c, "docs")
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			m := manager(c)
			res, err := m.Client().WriteBulkData(ctx, m.Scope(c.String("collection")), model.BulkKind(c.String("kind")), docs, c.Bool("ordered"))
			if res != nil {
				if werr := writeResult(c.App.Writer, res); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Print write events as they are published",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Aliases: []string{"d"}, Usage: "Only events of this database"},
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Only events of this collection, requires --database"},
			&cli.IntFlag{Name: "limit", Usage: "Stop after this many events, 0 for no limit"},
		},
		Action: func(c *cli.Context) error {
			database, collection := c.String("database"), c.String("collection")
			if collection != "" && database == "" {
				return model.Errorf(model.ErrValidation, "--collection requires --database")
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			ch, err := manager(c).Subscribe(ctx, database, collection)
			if err != nil {
				return err
			}

			limit := c.Int("limit")
			seen := 0
			for msg := range ch {
				ev, err := events.Decode(msg.Data())
				if err != nil {
					slog.Warn("Skipping malformed event", "subject", msg.Subject(), "error", err)
					_ = msg.Ack()
					continue
				}
				if err := writeResult(c.App.Writer, ev); err != nil {
					_ = msg.Nak()
					return err
				}
				_ = msg.Ack()
				seen++
				if limit > 0 && seen >= limit {
					return nil
				}
			}
			return nil
		},
	}
}
