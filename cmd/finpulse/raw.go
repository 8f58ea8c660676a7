package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/finpulse-backend/internal/app"
	types "github.com/yungbote/finpulse-backend/internal/domain"
	"github.com/yungbote/finpulse-backend/internal/pkg/dbctx"
)

func rawCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "raw", Short: "Raw user records"}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Load a JSON array of raw records; existing user_ids are left untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := decodeRawRecords(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withApp(cmd.Context(), app.Options{SkipLLM: true}, func(a *app.App) error {
				inserted, err := a.Repos.Raw.Insert(dbctx.For(cmd.Context()), records)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(map[string]int{"read": len(records), "inserted": inserted})
					return nil
				}
				fmt.Printf("read %d records, inserted %d\n", len(records), inserted)
				return nil
			})
		},
	})
	return cmd
}

func decodeRawRecords(r io.Reader) ([]*types.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var docs []map[string]any
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}
	out := make([]*types.RawRecord, 0, len(docs))
	seen := map[string]bool{}
	for i, doc := range docs {
		id, _ := doc["user_id"].(string)
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("record %d: user_id must be a non-empty string", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("record %d: duplicate user_id %q", i, id)
		}
		seen[id] = true
		doc["user_id"] = id
		out = append(out, &types.RawRecord{UserID: id, Doc: doc})
	}
	return out, nil
}
