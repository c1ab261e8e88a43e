package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
)

func printRecord(w io.Writer, record *entity.ActivityRecord, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(record)
	}

	account := "-"
	if record.AccountID != nil {
		account = *record.AccountID
	}
	_, err := fmt.Fprintf(w, "%s  %-34s  %-20s  %s\n",
		record.Timestamp.UTC().Format(time.RFC3339), record.Type, account, record.Description)
	return err
}
