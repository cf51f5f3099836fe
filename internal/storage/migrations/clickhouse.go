package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	chstore "xrpl-amm-history/internal/storage/clickhouse"
)

// RunClickhouseMigrations applies all embedded SQL files in lexical order
// on an existing connection. Each file holds exactly one statement.
func RunClickhouseMigrations(ctx context.Context, conn *chstore.Conn) error {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		stmt := strings.TrimSpace(string(data))
		if stmt == "" {
			continue
		}
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
