// Command badger_inspect dumps persisted room snapshots as a table, for
// poking at a database offline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"

	"aethermeet/domain"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "room:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Owner", "Policy", "Demo", "Active", "Members", "Pending", "Restrictions"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var snapshot domain.RoomSnapshot
				if err := json.Unmarshal(v, &snapshot); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				members := make([]string, 0, len(snapshot.Members))
				for _, m := range snapshot.Members {
					members = append(members, m.Username)
				}
				pending := make([]string, 0, len(snapshot.Pending))
				for _, p := range snapshot.Pending {
					pending = append(pending, fmt.Sprintf("%s(%d votes)", p.Username, len(p.Votes)))
				}

				restrictions := ""
				for kind, entries := range snapshot.Restrictions {
					if len(entries) > 0 {
						restrictions += fmt.Sprintf("%s:%d ", kind, len(entries))
					}
				}

				table.Append([]string{
					string(item.Key()),
					snapshot.Owner,
					string(snapshot.Policy),
					fmt.Sprintf("%t", snapshot.IsDemo),
					fmt.Sprintf("%t", snapshot.Active),
					strings.Join(members, ","),
					strings.Join(pending, ","),
					restrictions,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// A truncate-required error means the value log was not flushed;
		// open once in write mode to repair, then retry read-only.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
