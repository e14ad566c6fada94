// Package warehouse ingests long-format metadata records into the Postgres
// warehouse.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"edfanon/internal/config"
	"edfanon/internal/metadata"
	"edfanon/internal/services"
)

const insertBatchSize = 500

// row mirrors the warehouse column order: source, rowid, variable, value,
// then the identity columns added by the full pipeline variant.
type row struct {
	Source           string `gorm:"column:source"`
	RowID            int    `gorm:"column:rowid"`
	Variable         string `gorm:"column:variable"`
	Value            string `gorm:"column:value"`
	WorkspaceID      string `gorm:"column:workspace_id"`
	PseudoMRN        string `gorm:"column:pseudoMRN"`
	MetadataFileName string `gorm:"column:metadata_file_name"`
}

// Sink writes metadata records into one qualified warehouse table.
type Sink struct {
	db    *gorm.DB
	table string
}

// Open connects to the warehouse and binds the target table derived from the
// destination bucket (schema) and configured table name.
func Open(wh config.Warehouse, schemaSource string) (*Sink, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		wh.Host, wh.Port, wh.User, wh.Password, wh.Database)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, services.Wrap(services.ErrIngestion, "warehouse", "connect", wh.Host, err)
	}
	return &Sink{db: db, table: QualifiedTable(schemaSource, wh.Table)}, nil
}

// QualifiedTable derives the schema.table identifier from bucket and table
// names. Dashes are replaced with underscores, a downstream naming
// constraint of the warehouse.
func QualifiedTable(schema, table string) string {
	sanitize := func(name string) string {
		return strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
	}
	return sanitize(schema) + "." + sanitize(table)
}

// Table returns the qualified table this sink writes to.
func (s *Sink) Table() string { return s.table }

// Insert writes one warehouse row per metadata record.
func (s *Sink) Insert(ctx context.Context, records []metadata.Record) error {
	if len(records) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Table(s.table).CreateInBatches(toRows(records), insertBatchSize)
	if result.Error != nil {
		return services.Wrap(services.ErrIngestion, "warehouse", "insert", s.table, result.Error)
	}
	return nil
}

func toRows(records []metadata.Record) []row {
	rows := make([]row, len(records))
	for i, record := range records {
		rows[i] = row{
			Source:           record.Source,
			RowID:            record.RowID,
			Variable:         record.Variable,
			Value:            record.Value,
			WorkspaceID:      record.WorkspaceID,
			PseudoMRN:        record.PseudoMRN,
			MetadataFileName: record.MetadataFileName,
		}
	}
	return rows
}
